package downloader

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"podcompanion/internal/fileutil"
)

const (
	maxSlugLength     = 150
	maxCollisions     = 999
	fallbackSlug      = "untitled"
	fallbackExtension = "mp4"
)

var (
	slugDisallowed = regexp.MustCompile(`[^A-Za-z0-9._ -]+`)
	slugSpaces     = regexp.MustCompile(`\s+`)
)

// Slugify folds diacritics to their base letters, drops anything outside
// [A-Za-z0-9._ -], and joins words with underscores.
func Slugify(title string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), title)
	if err != nil {
		folded = title
	}
	cleaned := strings.TrimSpace(slugDisallowed.ReplaceAllString(folded, ""))
	cleaned = slugSpaces.ReplaceAllString(cleaned, "_")
	if len(cleaned) > maxSlugLength {
		cleaned = cleaned[:maxSlugLength]
	}
	cleaned = strings.Trim(cleaned, "._")
	if cleaned == "" {
		return fallbackSlug
	}
	return cleaned
}

// BuildFilename returns `YYYY-MM-DD_<slug>_<video_id>.<ext>`. An unknown
// publish date uses fallbackDate.
func BuildFilename(published *time.Time, fallbackDate time.Time, title, ext, videoID string) string {
	date := fallbackDate.UTC()
	if published != nil {
		date = published.UTC()
	}
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		ext = fallbackExtension
	}
	return fmt.Sprintf("%s_%s_%s.%s", date.Format(time.DateOnly), Slugify(title), videoID, ext)
}

// ResolveDestination returns dir/name, or the first free `<stem>_N<ext>`
// variant for N in 2..999. When all are taken a timestamp suffix is used.
func ResolveDestination(dir, name string, now time.Time) string {
	base := filepath.Join(dir, name)
	if !fileutil.Exists(base) {
		return base
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 2; i <= maxCollisions; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, i, ext))
		if !fileutil.Exists(candidate) {
			return candidate
		}
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, now.Unix(), ext))
}
