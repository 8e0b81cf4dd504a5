// Package logs reads the daemon log file for the CLI: the last N lines, and
// a follow mode that streams appended lines as they are written.
package logs
