// Standalone mock feed server for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/feedstore serve -c example/config.yaml
package main

import (
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"
)

func main() {
	fmt.Println("Mock feed server starting on :9999")
	fmt.Println("Each /feed?name=... publishes a new post every 30s")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	var (
		started = make(map[string]time.Time)
		mu      sync.Mutex
	)

	http.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		if name == "" {
			http.Error(w, "name is required", http.StatusBadRequest)
			return
		}

		mu.Lock()
		first, exists := started[name]
		if !exists {
			first = time.Now()
			started[name] = first
		}
		mu.Unlock()

		count := int(time.Since(first)/(30*time.Second)) + 1
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>%s</title>`, html.EscapeString(name))
		for i := count; i >= 1; i-- {
			published := first.Add(time.Duration(i-1) * 30 * time.Second)
			fmt.Fprintf(w, "<item><title>%s #%d</title><link>http://%s/posts/%s/%d</link><pubDate>%s</pubDate></item>",
				html.EscapeString(name), i, r.Host, html.EscapeString(name), i, published.UTC().Format(time.RFC1123Z))
		}
		fmt.Fprint(w, "</channel></rss>")
	})

	if err := http.ListenAndServe(":9999", nil); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
