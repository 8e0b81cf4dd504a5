// Package ytdlp wraps the yt-dlp command line for catalog listing,
// single-video metadata lookups, and media downloads.
//
// All invocations go through an Executor so tests can replay canned
// output without spawning processes. Callers bound each call with a
// context deadline; the default executor kills the child when the
// context ends and stops waiting on inherited pipes shortly after.
package ytdlp
