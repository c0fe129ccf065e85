package feedstore

import (
	"slices"
	"sort"
	"time"

	"github.com/samber/lo"
)

// Post is a single entry of a [Feed].
//
// Post is a value type; two posts are equal when every field matches.
type Post struct {
	Title       string    `json:"title"`
	Link        string    `json:"link,omitempty"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	Date        time.Time `json:"date"`
}

// Equal reports whether p and other hold the same values.
// Dates are compared as instants, ignoring location.
func (p Post) Equal(other Post) bool {
	return p.Title == other.Title &&
		p.Link == other.Link &&
		p.Description == other.Description &&
		p.ImageURL == other.ImageURL &&
		p.Date.Equal(other.Date)
}

// Feed is a subscribed RSS/Atom source together with its posts.
//
// SourceURL is the address the feed was subscribed with and identifies it
// for [Delete]. Feeds are compared structurally with [Feed.Equal].
type Feed struct {
	Title       string `json:"title"`
	Link        string `json:"link,omitempty"`
	Description string `json:"description,omitempty"`
	SourceURL   string `json:"source_url"`
	ImageURL    string `json:"image_url,omitempty"`
	Posts       []Post `json:"posts"`
}

// Equal reports whether f and other hold the same values, posts included.
func (f Feed) Equal(other Feed) bool {
	return f.Title == other.Title &&
		f.Link == other.Link &&
		f.Description == other.Description &&
		f.SourceURL == other.SourceURL &&
		f.ImageURL == other.ImageURL &&
		slices.EqualFunc(f.Posts, other.Posts, Post.Equal)
}

// State is the immutable snapshot a [Store] publishes.
//
// A State is replaced wholesale on every accepted transition. Callers must
// treat Feeds and SelectedFeed as read-only.
type State struct {
	// Progress is true while an asynchronous operation owns the store.
	Progress bool `json:"progress"`

	// Feeds is the full known feed set.
	Feeds []Feed `json:"feeds"`

	// SelectedFeed narrows the visible posts to one feed.
	// nil means all feeds are shown aggregated.
	SelectedFeed *Feed `json:"selected_feed"`
}

// Equal reports whether s and other are the same state by value.
func (s State) Equal(other State) bool {
	if s.Progress != other.Progress {
		return false
	}
	if !slices.EqualFunc(s.Feeds, other.Feeds, Feed.Equal) {
		return false
	}
	switch {
	case s.SelectedFeed == nil && other.SelectedFeed == nil:
		return true
	case s.SelectedFeed == nil || other.SelectedFeed == nil:
		return false
	default:
		return s.SelectedFeed.Equal(*other.SelectedFeed)
	}
}

// containsFeed reports whether feeds holds a value equal to f.
func containsFeed(feeds []Feed, f Feed) bool {
	return lo.ContainsBy(feeds, f.Equal)
}

// VisiblePosts returns the posts a reader of s should see: the posts of the
// selected feed, or of every feed when none is selected, newest first.
//
// The result is a new, non-nil slice; posts with equal dates keep feed order.
func VisiblePosts(s State) []Post {
	posts := []Post{}
	if s.SelectedFeed != nil {
		posts = append(posts, s.SelectedFeed.Posts...)
	} else {
		for _, f := range s.Feeds {
			posts = append(posts, f.Posts...)
		}
	}

	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].Date.After(posts[j].Date)
	})
	return posts
}
