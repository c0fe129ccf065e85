package reader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/samber/lo"

	"github.com/jpalmerr/feedstore"
	"github.com/jpalmerr/feedstore/internal/storage"
)

const defaultMaxConcurrency = 4

// Storage is the persistence a [Reader] needs. *storage.SQLite satisfies it.
type Storage interface {
	SaveFeed(ctx context.Context, feed feedstore.Feed, fetchedAt time.Time) error
	DeleteFeed(ctx context.Context, url string) error
	HasFeed(ctx context.Context, url string) (bool, error)
	URLs(ctx context.Context) ([]string, error)
	Feeds(ctx context.Context) ([]feedstore.Feed, error)
	FetchedAt(ctx context.Context, url string) (time.Time, error)
}

// Config tunes a [Reader]. Zero values select defaults.
type Config struct {
	// Timeout bounds a single HTTP attempt. Defaults to 15s.
	Timeout time.Duration

	// Retries is the number of extra attempts on network errors and 5xx.
	Retries int

	// InitialBackoff is the first delay between attempts. Defaults to 250ms.
	InitialBackoff time.Duration

	// MaxConcurrency limits parallel downloads during a refresh. Defaults to 4.
	MaxConcurrency int

	// UserAgent is sent with every request.
	UserAgent string

	// DefaultFeeds are subscribed on the first FetchAll if not stored yet.
	DefaultFeeds []string
}

// Reader implements [feedstore.FeedService] over HTTP, gofeed and a [Storage].
type Reader struct {
	store          Storage
	client         *Client
	maxConcurrency int
	logger         *slog.Logger
	now            func() time.Time

	mu sync.Mutex
	// defaultFeeds holds the configured defaults not saved yet.
	defaultFeeds []string
}

var _ feedstore.FeedService = (*Reader)(nil)

// New creates a [Reader] persisting to store.
func New(store Storage, cfg Config, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}

	return &Reader{
		store:          store,
		client:         NewClient(cfg.Timeout, cfg.Retries, cfg.InitialBackoff, cfg.UserAgent),
		maxConcurrency: maxConcurrency,
		logger:         logger,
		now:            time.Now,
		defaultFeeds:   append([]string(nil), cfg.DefaultFeeds...),
	}
}

// FetchAll returns every subscribed feed.
//
// Stored copies are returned unless forceLoad is set, in which case every
// subscription is downloaded again and persisted first. On the first call,
// default feeds that are not stored yet are downloaded as well; a default
// whose download fails is tried again on the next call. If any download
// fails, FetchAll returns the joined [FetchError] values and nothing is
// persisted for the failed URLs.
func (r *Reader) FetchAll(ctx context.Context, forceLoad bool) ([]feedstore.Feed, error) {
	urls, err := r.store.URLs(ctx)
	if err != nil {
		return nil, err
	}

	var pending []string
	if forceLoad {
		pending = append(pending, urls...)
	}
	pending = append(pending, r.pendingDefaults(urls)...)
	pending = lo.Uniq(pending)

	if len(pending) > 0 {
		r.logger.Info("refreshing feeds", "count", len(pending), "force", forceLoad)
		saved, err := r.refresh(ctx, pending)
		r.markSeeded(saved)
		if err != nil {
			return nil, err
		}
	}

	return r.store.Feeds(ctx)
}

// Add validates, downloads and stores the feed at rawURL.
func (r *Reader) Add(ctx context.Context, rawURL string) error {
	if err := validateURL(rawURL); err != nil {
		return err
	}

	exists, err := r.store.HasFeed(ctx, rawURL)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrDuplicateFeed, rawURL)
	}

	feed, err := r.fetch(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := r.store.SaveFeed(ctx, feed, r.now()); err != nil {
		return fmt.Errorf("save %s: %w", rawURL, err)
	}

	r.logger.Info("feed added", "url", rawURL, "title", feed.Title, "posts", len(feed.Posts))
	return nil
}

// Remove deletes the feed stored under rawURL.
func (r *Reader) Remove(ctx context.Context, rawURL string) error {
	err := r.store.DeleteFeed(ctx, rawURL)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrUnknownFeed, rawURL)
	}
	if err != nil {
		return fmt.Errorf("remove %s: %w", rawURL, err)
	}

	r.logger.Info("feed removed", "url", rawURL)
	return nil
}

// Close releases idle HTTP connections.
func (r *Reader) Close() {
	r.client.Close()
}

// pendingDefaults returns the default feeds that were never saved. Defaults
// already present in stored count as saved, so a default removed after its
// first save is not subscribed again.
func (r *Reader) pendingDefaults(stored []string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.defaultFeeds = lo.Without(r.defaultFeeds, stored...)
	return slices.Clone(r.defaultFeeds)
}

// markSeeded drops saved from the pending defaults.
func (r *Reader) markSeeded(saved []string) {
	if len(saved) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.defaultFeeds = lo.Without(r.defaultFeeds, saved...)
}

// fetchResult holds the outcome of downloading one feed.
type fetchResult struct {
	feed feedstore.Feed
	err  error
}

// refresh downloads urls concurrently, respecting maxConcurrency, and
// persists the ones that succeeded. It returns the URLs that were saved.
func (r *Reader) refresh(ctx context.Context, urls []string) ([]string, error) {
	jobs := make(chan int, len(urls))
	results := make([]fetchResult, len(urls))

	workers := min(r.maxConcurrency, len(urls))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				feed, err := r.fetch(ctx, urls[idx])
				results[idx] = fetchResult{feed: feed, err: err}
			}
		}()
	}

	for i := range urls {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	var (
		saved []string
		errs  []error
	)
	fetchedAt := r.now()
	for i, res := range results {
		if res.err != nil {
			r.logFailure(ctx, urls[i], res.err)
			errs = append(errs, res.err)
			continue
		}
		if err := r.store.SaveFeed(ctx, res.feed, fetchedAt); err != nil {
			errs = append(errs, fmt.Errorf("save %s: %w", res.feed.SourceURL, err))
			continue
		}
		saved = append(saved, res.feed.SourceURL)
	}
	return saved, errors.Join(errs...)
}

// logFailure logs a failed download, noting how old the stored copy is
// when there is one.
func (r *Reader) logFailure(ctx context.Context, feedURL string, err error) {
	fetchedAt, lookupErr := r.store.FetchedAt(ctx, feedURL)
	if lookupErr != nil {
		r.logger.Warn("feed refresh failed", "url", feedURL, "error", err.Error())
		return
	}
	r.logger.Warn("feed refresh failed, keeping stored copy",
		"url", feedURL,
		"fetched_at", fetchedAt,
		"age", r.now().Sub(fetchedAt).Round(time.Second),
		"error", err.Error(),
	)
}

// fetch downloads and parses the feed at feedURL.
func (r *Reader) fetch(ctx context.Context, feedURL string) (feedstore.Feed, error) {
	body, err := r.client.Get(ctx, feedURL)
	if err != nil {
		return feedstore.Feed{}, &FetchError{URL: feedURL, Err: err}
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return feedstore.Feed{}, &FetchError{URL: feedURL, Err: fmt.Errorf("parse: %w", err)}
	}

	return convertFeed(feedURL, parsed, r.now()), nil
}

// convertFeed maps a parsed document onto a [feedstore.Feed]. Items without
// a date are stamped with fallback.
func convertFeed(sourceURL string, parsed *gofeed.Feed, fallback time.Time) feedstore.Feed {
	feed := feedstore.Feed{
		Title:       parsed.Title,
		Link:        parsed.Link,
		Description: parsed.Description,
		SourceURL:   sourceURL,
		Posts:       make([]feedstore.Post, 0, len(parsed.Items)),
	}
	if feed.Title == "" {
		feed.Title = sourceURL
	}
	if parsed.Image != nil {
		feed.ImageURL = parsed.Image.URL
	}

	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		post := feedstore.Post{
			Title:       item.Title,
			Link:        item.Link,
			Description: item.Description,
			Date:        fallback,
		}
		switch {
		case item.PublishedParsed != nil:
			post.Date = *item.PublishedParsed
		case item.UpdatedParsed != nil:
			post.Date = *item.UpdatedParsed
		}
		if post.Description == "" {
			post.Description = item.Content
		}
		post.ImageURL = itemImage(item)
		feed.Posts = append(feed.Posts, post)
	}
	return feed
}

// itemImage picks the item image, falling back to the first image enclosure.
func itemImage(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	enc, ok := lo.Find(item.Enclosures, func(e *gofeed.Enclosure) bool {
		return e != nil && strings.HasPrefix(e.Type, "image/")
	})
	if ok {
		return enc.URL
	}
	return ""
}

// validateURL accepts absolute http and https URLs with a host.
func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https, got %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return nil
}
