// Package staging sweeps the fetcher's staging directory. Downloads land
// there before they are moved into the media directory, so anything old is a
// leftover from an interrupted run.
package staging
