// Package preflight provides readiness checks for the filesystem paths,
// external binaries, and optional services the companion depends on.
//
// The daemon runs RunAll at startup and refuses to start when a blocking
// check fails; the CLI "doctor" command prints every result. Podsync paths
// and the Redis status cache are optional: failures there degrade merged
// feeds or status output instead of blocking.
package preflight
