package ytdlp

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Entry is one catalog item reported by yt-dlp.
type Entry struct {
	VideoID         string
	Title           string
	Description     string
	WebpageURL      string
	PublishedAt     *time.Time
	DurationSeconds *int64
	ThumbnailURL    string
	Uploader        string
	Unavailable     bool
}

type rawThumbnail struct {
	URL string `json:"url"`
}

type rawEntry struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	WebpageURL       string         `json:"webpage_url"`
	URL              string         `json:"url"`
	UploadDate       string         `json:"upload_date"`
	ReleaseTimestamp *float64       `json:"release_timestamp"`
	Timestamp        *float64       `json:"timestamp"`
	Duration         *float64       `json:"duration"`
	Thumbnail        string         `json:"thumbnail"`
	Thumbnails       []rawThumbnail `json:"thumbnails"`
	Channel          string         `json:"channel"`
	Uploader         string         `json:"uploader"`
	Availability     string         `json:"availability"`
}

var unavailableTitles = map[string]struct{}{
	"[private video]": {},
	"[deleted video]": {},
}

var unavailableStates = map[string]struct{}{
	"private":         {},
	"subscriber_only": {},
	"premium_only":    {},
	"needs_auth":      {},
}

// ParseEntry decodes a single JSON object emitted by --dump-json or
// --dump-single-json. ok is false when the object carries no video id.
func ParseEntry(line []byte) (entry Entry, ok bool, err error) {
	var raw rawEntry
	if err := json.Unmarshal(line, &raw); err != nil {
		return Entry{}, false, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	entry, ok = raw.toEntry(false)
	return entry, ok, nil
}

func (r rawEntry) toEntry(preferUploader bool) (Entry, bool) {
	id := strings.TrimSpace(r.ID)
	if id == "" {
		return Entry{}, false
	}
	title := strings.TrimSpace(r.Title)
	entry := Entry{
		VideoID:      id,
		Title:        title,
		Description:  r.Description,
		WebpageURL:   pageURL(r, id),
		PublishedAt:  publishedAt(r),
		ThumbnailURL: thumbnailURL(r),
		Unavailable:  isUnavailable(title, r.Availability),
	}
	if preferUploader {
		entry.Uploader = firstNonEmpty(r.Uploader, r.Channel)
	} else {
		entry.Uploader = firstNonEmpty(r.Channel, r.Uploader)
	}
	if r.Duration != nil && *r.Duration >= 0 && !math.IsInf(*r.Duration, 0) && !math.IsNaN(*r.Duration) {
		secs := int64(math.Round(*r.Duration))
		entry.DurationSeconds = &secs
	}
	return entry, true
}

func isUnavailable(title, availability string) bool {
	if _, ok := unavailableTitles[strings.ToLower(title)]; ok {
		return true
	}
	_, ok := unavailableStates[strings.ToLower(strings.TrimSpace(availability))]
	return ok
}

func pageURL(r rawEntry, id string) string {
	for _, candidate := range []string{r.WebpageURL, r.URL} {
		candidate = strings.TrimSpace(candidate)
		if strings.HasPrefix(candidate, "http://") || strings.HasPrefix(candidate, "https://") {
			return candidate
		}
	}
	return "https://www.youtube.com/watch?v=" + id
}

func thumbnailURL(r rawEntry) string {
	if thumb := strings.TrimSpace(r.Thumbnail); thumb != "" {
		return thumb
	}
	// Flat playlist entries list thumbnails smallest first.
	for i := len(r.Thumbnails) - 1; i >= 0; i-- {
		if u := strings.TrimSpace(r.Thumbnails[i].URL); u != "" {
			return u
		}
	}
	return ""
}

func publishedAt(r rawEntry) *time.Time {
	if t, ok := parseUploadDate(r.UploadDate); ok {
		return &t
	}
	for _, ts := range []*float64{r.ReleaseTimestamp, r.Timestamp} {
		if ts == nil || *ts <= 0 || math.IsInf(*ts, 0) || math.IsNaN(*ts) {
			continue
		}
		t := time.Unix(int64(*ts), 0).UTC()
		return &t
	}
	return nil
}

func parseUploadDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"20060102", time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
