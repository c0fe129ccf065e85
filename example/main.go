package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/feedstore"
	"github.com/jpalmerr/feedstore/internal/reader"
	"github.com/jpalmerr/feedstore/internal/storage"
)

func main() {
	// start mock server (see mock_server.go)
	go StartMockFeedServer(":9999")
	time.Sleep(100 * time.Millisecond)

	db, err := storage.Open(":memory:")
	if err != nil {
		slog.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	rd := reader.New(db, reader.Config{
		DefaultFeeds: []string{
			"http://localhost:9999/feed?name=alpha",
			"http://localhost:9999/feed?name=beta",
		},
	}, slog.Default())
	defer rd.Close()

	st, err := feedstore.New(rd,
		feedstore.WithTaskTimeout(30*time.Second),
		feedstore.WithDispatchTrace(false),
	)
	if err != nil {
		slog.Error("failed to create store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	fmt.Println()
	fmt.Println("  feedstore demo")
	fmt.Println("  2 mock feeds on :9999, force refresh every 5s, gamma added after 12s")
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go printStates(ctx, st)
	go printErrors(ctx, st)

	st.Dispatch(feedstore.Refresh{ForceLoad: false})

	refresh := time.NewTicker(5 * time.Second)
	defer refresh.Stop()
	addGamma := time.After(12 * time.Second)

	for {
		select {
		case <-refresh.C:
			st.Dispatch(feedstore.Refresh{ForceLoad: true})
		case <-addGamma:
			st.Dispatch(feedstore.Add{URL: "http://localhost:9999/feed?name=gamma"})
		case <-ctx.Done():
			return
		}
	}
}

func printStates(ctx context.Context, st *feedstore.Store) {
	states := st.SubscribeState()
	defer st.UnsubscribeState(states)

	for {
		select {
		case s, ok := <-states:
			if !ok {
				return
			}
			if s.Progress {
				continue
			}
			posts := feedstore.VisiblePosts(s)
			latest := "-"
			if len(posts) > 0 {
				latest = posts[0].Title
			}
			fmt.Printf("  %s  %d feeds, %d posts, latest: %s\n",
				time.Now().Format("15:04:05"), len(s.Feeds), len(posts), latest)
		case <-ctx.Done():
			return
		}
	}
}

func printErrors(ctx context.Context, st *feedstore.Store) {
	effects := st.SubscribeEffects()
	defer st.UnsubscribeEffects(effects)

	for {
		select {
		case e, ok := <-effects:
			if !ok {
				return
			}
			if ee, isErr := e.(feedstore.ErrorEffect); isErr && !errors.Is(ee.Err, feedstore.ErrInProgress) {
				fmt.Printf("  error: %v\n", ee.Err)
			}
		case <-ctx.Done():
			return
		}
	}
}
