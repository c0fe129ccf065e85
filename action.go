package feedstore

import "fmt"

// Action is an intent submitted to a [Store] through [Store.Dispatch].
//
// The set of actions is closed: [Refresh], [Add], [Delete], [SelectFeed],
// [Data] and [Error]. Data and Error are results of scheduled work and are
// normally dispatched by the store itself.
type Action interface {
	fmt.Stringer
	action()
}

// Refresh reloads every feed. ForceLoad bypasses stored copies and
// refetches from the network.
type Refresh struct {
	ForceLoad bool
}

// Add subscribes to the feed at URL and reloads the feed set.
type Add struct {
	URL string
}

// Delete unsubscribes from the feed at URL and reloads the feed set.
type Delete struct {
	URL string
}

// SelectFeed narrows the visible posts to Feed. A nil Feed selects all feeds.
type SelectFeed struct {
	Feed *Feed
}

// Data carries the feed set produced by a successful scheduled operation.
type Data struct {
	Feeds []Feed
}

// Error carries the failure of a scheduled operation.
type Error struct {
	Err error
}

func (Refresh) action()    {}
func (Add) action()        {}
func (Delete) action()     {}
func (SelectFeed) action() {}
func (Data) action()       {}
func (Error) action()      {}

func (a Refresh) String() string { return fmt.Sprintf("Refresh(forceLoad=%t)", a.ForceLoad) }
func (a Add) String() string     { return fmt.Sprintf("Add(%s)", a.URL) }
func (a Delete) String() string  { return fmt.Sprintf("Delete(%s)", a.URL) }

func (a SelectFeed) String() string {
	if a.Feed == nil {
		return "SelectFeed(all)"
	}
	return fmt.Sprintf("SelectFeed(%s)", a.Feed.SourceURL)
}

func (a Data) String() string  { return fmt.Sprintf("Data(%d feeds)", len(a.Feeds)) }
func (a Error) String() string { return fmt.Sprintf("Error(%v)", a.Err) }

// actionKind is the label used for metrics and logs.
func actionKind(a Action) string {
	switch a.(type) {
	case Refresh:
		return "refresh"
	case Add:
		return "add"
	case Delete:
		return "delete"
	case SelectFeed:
		return "select_feed"
	case Data:
		return "data"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}
