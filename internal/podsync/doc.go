// Package podsync reads the state owned by an external Podsync instance:
// its TOML configuration (the list of feeds it tracks) and the RSS files it
// generates under its data directory. Nothing here writes to Podsync's
// files.
//
// Watch observes the configuration file so the daemon can import newly
// added feeds without waiting for the next periodic sync.
package podsync
