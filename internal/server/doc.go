// Package server exposes a feed store over HTTP.
//
// It handles all HTTP concerns of the feedstore CLI:
//
//   - REST API: JSON snapshot at "/api/state" and action endpoints that dispatch into the store
//   - Server-Sent Events: state and effect stream at "/api/sse"
//   - Metrics: Prometheus exposition at "/metrics"
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
package server
