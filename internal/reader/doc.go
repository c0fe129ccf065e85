// Package reader implements the feed service behind a feedstore.Store.
//
// A [Reader] keeps the subscribed feeds in SQLite, downloads them over HTTP
// with retries and parses RSS, Atom and JSON Feed documents with gofeed.
//
// The main components are:
//
//   - [Reader]: FetchAll, Add and Remove on top of a [Storage]
//   - [Client]: HTTP client with per-request timeout, size limit and
//     exponential backoff
//   - [FetchError]: failure of one feed URL
package reader
