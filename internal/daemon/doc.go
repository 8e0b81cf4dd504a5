// Package daemon coordinates the long-running podcompanion process.
//
// It holds a flock-based lock per data directory so only one worker ever
// claims jobs from a database, fails jobs a crashed predecessor left running,
// and starts and stops the worker loop.
package daemon
