// Package store persists podcompanion state in SQLite: the job table that is
// the sole source of truth for scheduled work, plus the channels, videos, and
// download records the runners mutate.
//
// Job rows move pending -> running -> done|failed and are never resurrected;
// retries are new rows. Download records are keyed by video identifier and
// allow at most one active (queued or running) state per video. Every write
// goes through a SQLITE_BUSY retry wrapper, and multi-statement decisions run
// inside a single transaction.
package store
