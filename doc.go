// Package feedstore provides a unidirectional state store for an RSS/Atom
// feed reader.
//
// A [Store] sits between an asynchronous [FeedService] and the observers
// that render feeds. Observers send intents as [Action] values; the store
// computes the next immutable [State] synchronously, publishes it, emits
// one-shot [Effect] notifications and schedules feed service work whose
// result re-enters the store as another action.
//
// # Quick Start
//
//	st, _ := feedstore.New(service, feedstore.WithDispatchTrace(false))
//	defer st.Close()
//
//	effects := st.SubscribeEffects()
//	defer st.UnsubscribeEffects(effects)
//
//	st.Dispatch(feedstore.Add{URL: "https://blog.golang.org/feed.atom"})
//	state, _ := st.AwaitIdle(ctx)
//	for _, post := range feedstore.VisiblePosts(state) {
//	    fmt.Println(post.Date, post.Title)
//	}
//
// # Transitions
//
// The Progress flag of the state is the store's only concurrency token.
// [Refresh], [Add] and [Delete] are accepted only while it is false and set
// it; the matching [Data] or [Error] result clears it. Anything dispatched
// out of turn is rejected with an [ErrorEffect] and leaves the state as it
// was:
//
//   - [ErrInProgress]: Refresh, Add or Delete while an operation is in flight
//   - [ErrUnknownFeed]: SelectFeed with a feed not in the state
//   - [ErrUnexpectedAction]: Data or Error with no operation in flight
//
// Failures of the feed service are reported as an [ErrorEffect] carrying the
// underlying error, with the previous feeds kept.
//
// # Diagnostics
//
// By default every dispatch also emits an [ErrorEffect] carrying
// [ErrDispatchAction] before anything else. It is a trace, not a failure:
// filter it with [ErrorEffect.IsDiagnostic] or disable it with
// [WithDispatchTrace]. Actions and published states are always logged at
// debug level, and Prometheus metrics are registered under the
// feedstore_ prefix.
//
// # Architecture
//
//   - internal/flow: latest-value and fire-forward streams
//   - internal/reader: HTTP + gofeed implementation of [FeedService]
//   - internal/storage: SQLite persistence for the reader
//   - internal/server: JSON API and Server-Sent Events over a store
package feedstore
