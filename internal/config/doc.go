// Package config loads, normalizes, and validates podcompanion configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// COMPANION_PUBLIC_BASE_URL. The Config type centralizes every knob the
// daemon and CLI need: where the job database and media live, how feeds are
// addressed publicly, how the external fetcher is invoked, and where the
// external feed-owning tool keeps its configuration and generated feeds.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
