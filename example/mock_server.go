package main

import (
	"fmt"
	"html"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"
)

// mockFeed tracks the posts and next publish time for a single feed.
type mockFeed struct {
	posts         []mockPost
	nextPublishAt time.Time
}

type mockPost struct {
	title string
	date  time.Time
}

// StartMockFeedServer runs mock RSS feeds at /feed?name=... that publish a
// new post every 10-30 seconds.
// Call this in a goroutine before creating the store.
func StartMockFeedServer(addr string) {
	var (
		feeds = make(map[string]*mockFeed)
		mu    sync.Mutex
	)

	http.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		if name == "" {
			http.Error(w, "name is required", http.StatusBadRequest)
			return
		}

		// simulate small latency variance
		time.Sleep(time.Duration(50+rand.Intn(150)) * time.Millisecond)

		mu.Lock()
		feed, exists := feeds[name]
		if !exists {
			feed = &mockFeed{
				posts:         []mockPost{{title: name + " #1", date: time.Now()}},
				nextPublishAt: time.Now().Add(time.Duration(10+rand.Intn(21)) * time.Second),
			}
			feeds[name] = feed
		}

		if time.Now().After(feed.nextPublishAt) {
			post := mockPost{title: fmt.Sprintf("%s #%d", name, len(feed.posts)+1), date: time.Now()}
			feed.posts = append(feed.posts, post)
			feed.nextPublishAt = time.Now().Add(time.Duration(10+rand.Intn(21)) * time.Second)
			slog.Info("post published", "feed", name, "title", post.title)
		}
		body := renderRSS(name, "http://"+r.Host, feed.posts)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/rss+xml")
		if _, err := w.Write([]byte(body)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	if err := http.ListenAndServe(addr, nil); err != nil {
		slog.Error("mock server error", "error", err)
	}
}

func renderRSS(name, base string, posts []mockPost) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<rss version="2.0"><channel>`)
	fmt.Fprintf(&b, "<title>%s</title><link>%s/feed?name=%s</link><description>Mock feed %s</description>",
		html.EscapeString(name), base, html.EscapeString(name), html.EscapeString(name))
	for i, p := range posts {
		fmt.Fprintf(&b, "<item><title>%s</title><link>%s/posts/%s/%d</link><pubDate>%s</pubDate></item>",
			html.EscapeString(p.title), base, html.EscapeString(name), i+1, p.date.UTC().Format(time.RFC1123Z))
	}
	b.WriteString(`</channel></rss>`)
	return b.String()
}
