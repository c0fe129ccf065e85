// Package storage provides SQLite persistence for subscribed feeds.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jpalmerr/feedstore"
)

// ErrNotFound is returned when no feed is stored under a URL.
var ErrNotFound = errors.New("feed not found")

// timeLayout is how timestamps are stored; text keeps them driver-neutral.
const timeLayout = time.RFC3339Nano

// SQLite stores feeds and their posts in a single SQLite database.
//
// Feeds keep the order in which they were first saved. Posts keep the order
// in which the feed listed them.
type SQLite struct {
	conn *sql.DB
}

// Open opens or creates the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(path string) (*SQLite, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// one connection keeps pragmas and :memory: databases consistent
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}

	db := &SQLite{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *SQLite) Close() error {
	return db.conn.Close()
}

func (db *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS feeds (
		source_url TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		title TEXT NOT NULL,
		link TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		fetched_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS posts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		feed_url TEXT NOT NULL REFERENCES feeds(source_url) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		title TEXT NOT NULL,
		link TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		published_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_posts_feed ON posts(feed_url, position);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveFeed inserts or replaces feed and all of its posts.
//
// A feed saved for the first time is appended after the existing ones; a
// feed saved again keeps its position.
func (db *SQLite) SaveFeed(ctx context.Context, feed feedstore.Feed, fetchedAt time.Time) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO feeds (source_url, position, title, link, description, image_url, fetched_at)
		VALUES (?, (SELECT COALESCE(MAX(position), 0) + 1 FROM feeds), ?, ?, ?, ?, ?)
		ON CONFLICT(source_url) DO UPDATE SET
			title = excluded.title,
			link = excluded.link,
			description = excluded.description,
			image_url = excluded.image_url,
			fetched_at = excluded.fetched_at`,
		feed.SourceURL, feed.Title, feed.Link, feed.Description, feed.ImageURL,
		fetchedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("save feed %s: %w", feed.SourceURL, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM posts WHERE feed_url = ?", feed.SourceURL); err != nil {
		return fmt.Errorf("clear posts %s: %w", feed.SourceURL, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO posts (feed_url, position, title, link, description, image_url, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare posts: %w", err)
	}
	defer stmt.Close()

	for i, p := range feed.Posts {
		_, err := stmt.ExecContext(ctx, feed.SourceURL, i, p.Title, p.Link, p.Description, p.ImageURL,
			p.Date.UTC().Format(timeLayout))
		if err != nil {
			return fmt.Errorf("save post %q: %w", p.Title, err)
		}
	}

	return tx.Commit()
}

// DeleteFeed removes the feed stored under url together with its posts.
// Returns [ErrNotFound] if there is none.
func (db *SQLite) DeleteFeed(ctx context.Context, url string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM posts WHERE feed_url = ?", url); err != nil {
		return fmt.Errorf("delete posts %s: %w", url, err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM feeds WHERE source_url = ?", url)
	if err != nil {
		return fmt.Errorf("delete feed %s: %w", url, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete feed %s: %w", url, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// HasFeed reports whether a feed is stored under url.
func (db *SQLite) HasFeed(ctx context.Context, url string) (bool, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM feeds WHERE source_url = ?", url).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup feed %s: %w", url, err)
	}
	return n > 0, nil
}

// URLs returns the source URLs of every stored feed in position order.
func (db *SQLite) URLs(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT source_url FROM feeds ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// Feeds returns every stored feed with its posts, in position order.
func (db *SQLite) Feeds(ctx context.Context) ([]feedstore.Feed, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT source_url, title, link, description, image_url
		FROM feeds ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}

	feeds := []feedstore.Feed{}
	index := make(map[string]int)
	for rows.Next() {
		var f feedstore.Feed
		if err := rows.Scan(&f.SourceURL, &f.Title, &f.Link, &f.Description, &f.ImageURL); err != nil {
			rows.Close()
			return nil, err
		}
		f.Posts = []feedstore.Post{}
		index[f.SourceURL] = len(feeds)
		feeds = append(feeds, f)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	postRows, err := db.conn.QueryContext(ctx, `
		SELECT feed_url, title, link, description, image_url, published_at
		FROM posts ORDER BY feed_url, position`)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer postRows.Close()

	for postRows.Next() {
		var (
			feedURL, published string
			p                  feedstore.Post
		)
		if err := postRows.Scan(&feedURL, &p.Title, &p.Link, &p.Description, &p.ImageURL, &published); err != nil {
			return nil, err
		}
		p.Date, err = time.Parse(timeLayout, published)
		if err != nil {
			return nil, fmt.Errorf("post %q: bad date %q: %w", p.Title, published, err)
		}
		i, ok := index[feedURL]
		if !ok {
			continue
		}
		feeds[i].Posts = append(feeds[i].Posts, p)
	}
	return feeds, postRows.Err()
}

// FetchedAt returns when the feed under url was last saved.
// Returns [ErrNotFound] if there is none.
func (db *SQLite) FetchedAt(ctx context.Context, url string) (time.Time, error) {
	var s string
	err := db.conn.QueryRowContext(ctx, "SELECT fetched_at FROM feeds WHERE source_url = ?", url).Scan(&s)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("lookup feed %s: %w", url, err)
	}
	return time.Parse(timeLayout, s)
}
