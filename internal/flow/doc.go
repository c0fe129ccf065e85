// Package flow provides the observable streams a feed store publishes on.
//
// The main components are:
//
//   - [StateFlow]: latest-value stream; new subscribers receive the current
//     value immediately, then every replacement in publish order
//   - [SharedFlow]: fire-forward stream; subscribers only see values emitted
//     after they subscribed and nothing is queued for absent subscribers
//
// Both streams are safe for concurrent use and never block the publisher.
// A slow [StateFlow] subscriber has intermediate values conflated but always
// ends on the latest one. A slow [SharedFlow] subscriber misses values once
// its buffer is full.
package flow
