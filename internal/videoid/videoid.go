// Package videoid extracts external video identifiers from page URLs, feed
// GUIDs, and media filenames.
package videoid

import (
	"path"
	"regexp"
	"strings"
)

var (
	genericID   = regexp.MustCompile(`^[A-Za-z0-9_-]{6,20}$`)
	urlPatterns = []*regexp.Regexp{
		regexp.MustCompile(`[?&]v=([A-Za-z0-9_-]{6,20})`),
		regexp.MustCompile(`youtu\.be/([A-Za-z0-9_-]{6,20})`),
		regexp.MustCompile(`youtube\.com/(?:shorts|live|embed)/([A-Za-z0-9_-]{6,20})`),
	}
)

// Valid reports whether value has the shape of a video identifier.
func Valid(value string) bool {
	return genericID.MatchString(value)
}

// InFilename reports whether a media filename names id. The stem must be
// the id itself, end in a bracketed `[id]`, or end in the id directly after
// a `_`, `-` or space. An id that merely ends a longer token does not count.
func InFilename(name, id string) bool {
	if !Valid(id) {
		return false
	}
	base := path.Base(strings.TrimSpace(name))
	stem := strings.TrimSuffix(base, path.Ext(base))
	switch {
	case stem == id, strings.HasSuffix(stem, "["+id+"]"):
		return true
	case strings.HasSuffix(stem, id):
		switch stem[len(stem)-len(id)-1] {
		case '_', '-', ' ':
			return true
		}
	}
	return false
}

// FromURL returns the identifier embedded in a page URL.
func FromURL(value string) string {
	for _, pattern := range urlPatterns {
		if match := pattern.FindStringSubmatch(value); match != nil {
			return match[1]
		}
	}
	return ""
}

// FromReference returns the identifier named by a feed GUID or link: a page
// URL match, or the whole value when it is itself identifier-shaped.
func FromReference(value string) string {
	text := strings.TrimSpace(value)
	if id := FromURL(text); id != "" {
		return id
	}
	if genericID.MatchString(text) {
		return text
	}
	return ""
}
