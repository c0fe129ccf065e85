package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jpalmerr/feedstore"
)

const goBlogRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Go Blog</title>
    <link>https://go.dev/blog</link>
    <description>The Go Blog</description>
    <item>
      <title>Older post</title>
      <link>https://go.dev/blog/older</link>
      <pubDate>Mon, 01 Jan 2024 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Newer post</title>
      <link>https://go.dev/blog/newer</link>
      <pubDate>Thu, 01 Feb 2024 10:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

const otherAtom = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Other Feed</title>
  <link href="https://other.example.com/"/>
  <updated>2024-01-20T00:00:00Z</updated>
  <id>urn:other</id>
  <entry>
    <title>Middle post</title>
    <link href="https://other.example.com/middle"/>
    <id>urn:other:middle</id>
    <updated>2024-01-15T00:00:00Z</updated>
  </entry>
</feed>`

func newFeedServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/go.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, goBlogRSS)
	})
	mux.HandleFunc("/other.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, otherAtom)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

// fetchConfig writes a config seeding the go.xml feed into a temp database.
func fetchConfig(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	dir := t.TempDir()
	return writeFile(t, dir, "config.yaml", fmt.Sprintf(`
database: %s
log_level: error
fetch:
  retries: 0
feeds:
  - %s/go.xml
`, filepath.Join(dir, "feeds.db"), ts.URL))
}

func TestRunFetch_SeedsDefaultFeeds(t *testing.T) {
	ts := newFeedServer(t)
	configPath := fetchConfig(t, ts)

	output, err := executeCmd(t, "fetch", "-c", configPath)
	if err != nil {
		t.Fatalf("fetch command error = %v", err)
	}

	if !strings.HasPrefix(output, "1 feeds, 2 posts shown\n") {
		t.Errorf("output header = %q", output)
	}
	newer := strings.Index(output, "Newer post")
	older := strings.Index(output, "Older post")
	if newer < 0 || older < 0 || newer > older {
		t.Errorf("posts not printed newest first:\n%s", output)
	}
	if !strings.Contains(output, "2024-02-01  Newer post") {
		t.Errorf("output missing dated title:\n%s", output)
	}
	if !strings.Contains(output, "  Go Blog\n") {
		t.Errorf("output missing feed title:\n%s", output)
	}
}

func TestRunFetch_AddAndDelete(t *testing.T) {
	ts := newFeedServer(t)
	configPath := fetchConfig(t, ts)
	otherURL := ts.URL + "/other.xml"

	output, err := executeCmd(t, "fetch", "-c", configPath, "--add", otherURL, "--json", "--limit", "0")
	if err != nil {
		t.Fatalf("fetch --add error = %v", err)
	}

	var posts []feedstore.Post
	if err := json.Unmarshal([]byte(output), &posts); err != nil {
		t.Fatalf("failed to parse JSON output: %v\n%s", err, output)
	}
	wantTitles := []string{"Newer post", "Middle post", "Older post"}
	if len(posts) != len(wantTitles) {
		t.Fatalf("len(posts) = %d, want %d", len(posts), len(wantTitles))
	}
	for i, want := range wantTitles {
		if posts[i].Title != want {
			t.Errorf("posts[%d].Title = %q, want %q", i, posts[i].Title, want)
		}
	}

	output, err = executeCmd(t, "fetch", "-c", configPath, "--feed", otherURL)
	if err != nil {
		t.Fatalf("fetch --feed error = %v", err)
	}
	if !strings.HasPrefix(output, "2 feeds, 1 posts shown\n") {
		t.Errorf("output header = %q, want selected feed only", output)
	}

	output, err = executeCmd(t, "fetch", "-c", configPath, "--delete", otherURL)
	if err != nil {
		t.Fatalf("fetch --delete error = %v", err)
	}
	if !strings.HasPrefix(output, "1 feeds, 2 posts shown\n") {
		t.Errorf("output header after delete = %q", output)
	}
}

func TestRunFetch_Errors(t *testing.T) {
	ts := newFeedServer(t)
	configPath := fetchConfig(t, ts)

	// store the configured feed before exercising failures
	if _, err := executeCmd(t, "fetch", "-c", configPath); err != nil {
		t.Fatalf("fetch command error = %v", err)
	}

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"invalid url", []string{"--add", "not a url"}, "Add(not a url)"},
		{"duplicate", []string{"--add", ts.URL + "/go.xml"}, "already added"},
		{"missing feed", []string{"--add", ts.URL + "/missing.xml"}, "404"},
		{"unknown delete", []string{"--delete", ts.URL + "/other.xml"}, "Delete("},
		{"unknown select", []string{"--feed", ts.URL + "/other.xml"}, feedstore.ErrUnknownFeed.Error()},
		{"exclusive flags", []string{"--add", "https://a.example.com", "--force"}, "none of the others can be"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"fetch", "-c", configPath}, tt.args...)
			_, err := executeCmd(t, args...)
			if err == nil {
				t.Fatal("fetch command expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}
