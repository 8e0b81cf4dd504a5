package store

import "errors"

var (
	// ErrNotRunning reports a completion or failure for a job that is not running.
	ErrNotRunning = errors.New("job is not running")
	// ErrUnknownKind reports an enqueue with a kind outside the fixed set.
	ErrUnknownKind = errors.New("unknown job kind")
	// ErrInvalidPayload reports a payload that does not address its kind's target.
	ErrInvalidPayload = errors.New("invalid job payload")
	// ErrInvalidTransition reports a download state change the record's current status forbids.
	ErrInvalidTransition = errors.New("invalid download transition")
)
