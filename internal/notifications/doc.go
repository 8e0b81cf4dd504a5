// Package notifications publishes job outcomes to ntfy.
//
// Completed and failed downloads and failed catalog scans are announced on the
// topic configured under [notifications]. Without a topic the service is a
// no-op, so callers never need to check whether alerts are enabled.
package notifications
