package feeds

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"mime"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"podcompanion/internal/podsync"
	"podcompanion/internal/store"
)

// Item is one rendered `<item>` element plus the keys used to merge and
// order it.
type Item struct {
	Key         string
	PublishedAt *time.Time
	XML         string
	External    bool
}

type document struct {
	Title       string
	Description string
	Link        string
	ImageURL    string
	Items       []Item
}

type rssGUID struct {
	IsPermaLink string `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

type itunesImage struct {
	Href string `xml:"href,attr"`
}

type rssItem struct {
	XMLName     xml.Name     `xml:"item"`
	Title       string       `xml:"title"`
	Description string       `xml:"description"`
	GUID        rssGUID      `xml:"guid"`
	PubDate     string       `xml:"pubDate,omitempty"`
	Link        string       `xml:"link,omitempty"`
	Enclosure   rssEnclosure `xml:"enclosure"`
	Duration    string       `xml:"itunes:duration,omitempty"`
	Image       *itunesImage `xml:"itunes:image,omitempty"`
}

var mediaTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".opus": "audio/ogg",
	".flac": "audio/flac",
	".wav":  "audio/wav",
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".mov":  "video/quicktime",
}

// MediaType guesses an enclosure MIME type from a filename.
func MediaType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if t, ok := mediaTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

// FormatPubDate renders t as an RSS date in UTC.
func FormatPubDate(t time.Time) string {
	return t.UTC().Format(time.RFC1123Z)
}

// sortItems orders items newest first with undated items last, keeping the
// input order among equals.
func sortItems(items []Item) {
	slices.SortStableFunc(items, func(a, b Item) int {
		return store.ComparePublished(a.PublishedAt, b.PublishedAt)
	})
}

// rssOpenTag declares every prefix an external item may still carry.
var rssOpenTag = func() string {
	uris := make([]string, 0, len(podsync.Namespaces))
	for uri := range podsync.Namespaces {
		uris = append(uris, uri)
	}
	slices.SortFunc(uris, func(a, b string) int {
		return strings.Compare(podsync.Namespaces[a], podsync.Namespaces[b])
	})
	var b strings.Builder
	b.WriteString("<rss")
	for _, uri := range uris {
		fmt.Fprintf(&b, ` xmlns:%s="%s"`, podsync.Namespaces[uri], uri)
	}
	b.WriteString(` version="2.0">` + "\n")
	return b.String()
}()

func render(doc document, built time.Time) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(xml.Header)
	b.WriteString(rssOpenTag)
	b.WriteString("  <channel>\n")
	if err := writeElement(&b, "title", doc.Title); err != nil {
		return nil, err
	}
	if err := writeElement(&b, "description", doc.Description); err != nil {
		return nil, err
	}
	if err := writeElement(&b, "link", doc.Link); err != nil {
		return nil, err
	}
	if err := writeElement(&b, "lastBuildDate", FormatPubDate(built)); err != nil {
		return nil, err
	}
	if doc.ImageURL != "" {
		b.WriteString(`    <itunes:image href="`)
		if err := xml.EscapeText(&b, []byte(doc.ImageURL)); err != nil {
			return nil, err
		}
		b.WriteString("\"></itunes:image>\n")
	}
	for _, item := range doc.Items {
		b.WriteString("    ")
		b.WriteString(item.XML)
		b.WriteString("\n")
	}
	b.WriteString("  </channel>\n</rss>\n")
	return b.Bytes(), nil
}

func writeElement(b *bytes.Buffer, name, value string) error {
	fmt.Fprintf(b, "    <%s>", name)
	if err := xml.EscapeText(b, []byte(value)); err != nil {
		return fmt.Errorf("escape %s: %w", name, err)
	}
	fmt.Fprintf(b, "</%s>\n", name)
	return nil
}

func marshalItem(item rssItem) (string, error) {
	data, err := xml.MarshalIndent(item, "    ", "  ")
	if err != nil {
		return "", fmt.Errorf("encode item: %w", err)
	}
	return strings.TrimPrefix(string(data), "    "), nil
}

func formatDuration(seconds *int64) string {
	if seconds == nil || *seconds <= 0 {
		return ""
	}
	return strconv.FormatInt(*seconds, 10)
}
