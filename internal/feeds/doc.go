// Package feeds renders the manual feed and the per-channel merged feeds.
//
// The manual feed lists every finished download. A merged feed combines the
// items Podsync already publishes for a channel with this system's manual
// downloads for that channel; when both carry the same video the Podsync
// item is kept. Items are ordered newest published first with undated items
// last, in their original relative order.
//
// Every document is written to a temp file and renamed into place while
// holding a package-wide lock, so writers never interleave and readers never
// see a partial file.
package feeds
