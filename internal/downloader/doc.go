// Package downloader runs download_video jobs: it fetches media into the
// staging directory, names it after the video's publish date and title,
// moves it into the media directory, and queues feed regeneration.
//
// A file only becomes visible under its final name once it is complete.
// Failed downloads are recorded and never retried automatically.
package downloader
