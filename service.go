package feedstore

import "context"

// FeedService is the fetching, parsing and persistence backend a [Store]
// schedules work against.
//
// Implementations must be safe for concurrent use, although a Store never
// runs more than one operation at a time. Every method should honour ctx
// cancellation; the store cancels it on timeout and on [Store.Close].
type FeedService interface {
	// FetchAll returns every subscribed feed. forceLoad refetches from the
	// network instead of returning stored copies.
	FetchAll(ctx context.Context, forceLoad bool) ([]Feed, error)

	// Add subscribes to the feed at url.
	Add(ctx context.Context, url string) error

	// Remove unsubscribes from the feed at url.
	Remove(ctx context.Context, url string) error
}
