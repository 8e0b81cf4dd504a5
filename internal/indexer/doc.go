// Package indexer runs index_channel jobs: it lists a channel's catalog
// through yt-dlp and upserts each entry as it streams in.
//
// Entries already written when a run times out or fails stay in the
// catalog; a later run converges on the same rows. last_indexed_at only
// advances when the listing completes.
package indexer
