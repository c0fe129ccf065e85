package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/feedstore"
)

func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Run one feed operation and print the resulting posts",
		Long: `Run a single action against the store without starting a server.

By default fetch loads stored feeds (downloading configured feeds that are
not stored yet). --force downloads every subscription again, --add and
--delete change subscriptions first. The visible posts are printed newest
first; --feed limits them to one feed.

Example:
  feedstore fetch --force
  feedstore fetch --add https://go.dev/blog/feed.atom
  feedstore fetch --feed https://go.dev/blog/feed.atom --limit 5 --json`,
		RunE: runFetch,
	}

	cmd.Flags().Bool("force", false, "download every subscription again")
	cmd.Flags().String("add", "", "subscribe to a feed url")
	cmd.Flags().String("delete", "", "unsubscribe from a feed url")
	cmd.Flags().String("feed", "", "only print posts of this feed url")
	cmd.Flags().Int("limit", 20, "maximum posts to print (0 for all)")
	cmd.Flags().Bool("json", false, "print posts as JSON")
	cmd.Flags().Duration("timeout", 2*time.Minute, "maximum time to wait for the operation")
	cmd.MarkFlagsMutuallyExclusive("add", "delete", "force")
	return cmd
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	st, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	force, _ := cmd.Flags().GetBool("force")
	addURL, _ := cmd.Flags().GetString("add")
	deleteURL, _ := cmd.Flags().GetString("delete")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	var action feedstore.Action = feedstore.Refresh{ForceLoad: force}
	switch {
	case addURL != "":
		action = feedstore.Add{URL: addURL}
	case deleteURL != "":
		action = feedstore.Delete{URL: deleteURL}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	state, err := dispatchAndWait(ctx, st, action)
	if err != nil {
		return err
	}

	if feedURL, _ := cmd.Flags().GetString("feed"); feedURL != "" {
		state, err = selectFeed(st, feedURL)
		if err != nil {
			return err
		}
	}

	posts := feedstore.VisiblePosts(state)
	if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	return printPosts(cmd.OutOrStdout(), state, posts, asJSON)
}

// dispatchAndWait dispatches action, waits for the store to go idle and
// returns the first non-diagnostic error effect as an error.
func dispatchAndWait(ctx context.Context, st *feedstore.Store, action feedstore.Action) (feedstore.State, error) {
	effects := st.SubscribeEffects()
	defer st.UnsubscribeEffects(effects)

	st.Dispatch(action)

	state, err := st.AwaitIdle(ctx)
	if err != nil {
		return feedstore.State{}, fmt.Errorf("%s: %w", action, err)
	}

	// effects are emitted before the state that ends the operation is
	// published, so everything relevant is already buffered
	if err := firstFailure(effects); err != nil {
		return state, fmt.Errorf("%s: %w", action, err)
	}
	return state, nil
}

func firstFailure(effects <-chan feedstore.Effect) error {
	for {
		select {
		case e, ok := <-effects:
			if !ok {
				return nil
			}
			if ee, isErr := e.(feedstore.ErrorEffect); isErr && !ee.IsDiagnostic() {
				return ee.Err
			}
		default:
			return nil
		}
	}
}

func selectFeed(st *feedstore.Store, feedURL string) (feedstore.State, error) {
	for _, f := range st.State().Feeds {
		if f.SourceURL == feedURL {
			st.Dispatch(feedstore.SelectFeed{Feed: &f})
			return st.State(), nil
		}
	}
	return feedstore.State{}, fmt.Errorf("%s: %w", feedURL, feedstore.ErrUnknownFeed)
}

func printPosts(w io.Writer, state feedstore.State, posts []feedstore.Post, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(posts)
	}

	titles := make(map[string]string)
	for _, f := range state.Feeds {
		for _, p := range f.Posts {
			titles[p.Link] = f.Title
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d feeds, %d posts shown\n", len(state.Feeds), len(posts))
	for _, p := range posts {
		fmt.Fprintf(&b, "\n%s  %s\n", p.Date.Format("2006-01-02"), p.Title)
		if source := titles[p.Link]; source != "" {
			fmt.Fprintf(&b, "  %s\n", source)
		}
		if p.Link != "" {
			fmt.Fprintf(&b, "  %s\n", p.Link)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
