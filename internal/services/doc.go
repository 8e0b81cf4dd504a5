// Package services defines shared utilities consumed by the job runners and
// external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, job kinds, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper, and Kind/Redact for
//     classifying failures and producing text safe to persist.
//
// Use these helpers when wiring new runner logic so failure handling and
// observability stay uniform across the worker.
package services
