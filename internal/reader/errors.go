package reader

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidURL rejects feed URLs that are not absolute http(s) URLs.
	ErrInvalidURL = errors.New("invalid feed url")

	// ErrDuplicateFeed rejects adding a feed that is already subscribed.
	ErrDuplicateFeed = errors.New("feed already added")

	// ErrUnknownFeed rejects removing a feed that is not subscribed.
	ErrUnknownFeed = errors.New("feed not subscribed")
)

// FetchError reports that the feed at URL could not be downloaded or parsed.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
