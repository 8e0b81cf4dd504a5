package podsync

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/encoding/htmlindex"

	"podcompanion/internal/videoid"
)

const (
	itunesNS = "http://www.itunes.com/dtds/podcast-1.0.dtd"
	xmlURL   = "http://www.w3.org/XML/1998/namespace"
)

// Namespaces maps the namespace URIs kept in re-emitted items to the prefix
// a document embedding them must declare. Item elements and attributes in
// any other namespace are dropped.
var Namespaces = map[string]string{
	itunesNS:                                          "itunes",
	"http://search.yahoo.com/mrss/":                   "media",
	"http://purl.org/rss/1.0/modules/content/":        "content",
	"http://www.w3.org/2005/Atom":                     "atom",
	"http://www.google.com/schemas/play-podcasts/1.0": "googleplay",
}

// Feed is a parsed Podsync-generated RSS document.
type Feed struct {
	ID          string
	Path        string
	SourceURL   string
	Title       string
	Description string
	ImageURL    string
	Items       []Item
}

// Item is one episode from an external feed. RawXML holds the `<item>`
// element re-serialized as UTF-8 with entities resolved and only the
// prefixes from Namespaces in use.
type Item struct {
	GUID        string
	Link        string
	Title       string
	DedupeKey   string
	PublishedAt *time.Time
	RawXML      string
}

// SkippedFile records a feed file that could not be parsed.
type SkippedFile struct {
	Path string
	Err  error
}

// Catalog is the result of scanning a Podsync data directory.
type Catalog struct {
	Feeds   []Feed
	Skipped []SkippedFile
}

// BySourceURL indexes feeds by normalized channel link.
func (c Catalog) BySourceURL() map[string]*Feed {
	out := make(map[string]*Feed, len(c.Feeds))
	for i := range c.Feeds {
		if c.Feeds[i].SourceURL != "" {
			out[c.Feeds[i].SourceURL] = &c.Feeds[i]
		}
	}
	return out
}

// ByID indexes feeds by feed id (file stem).
func (c Catalog) ByID() map[string]*Feed {
	out := make(map[string]*Feed, len(c.Feeds))
	for i := range c.Feeds {
		out[c.Feeds[i].ID] = &c.Feeds[i]
	}
	return out
}

var errNoChannel = errors.New("no channel element")

// ReadFeeds walks dir recursively and parses every *.xml file in path order.
// A missing directory yields an empty catalog. Files that fail to parse are
// reported in Catalog.Skipped rather than failing the scan.
func ReadFeeds(dir string) (Catalog, error) {
	var catalog Catalog
	if strings.TrimSpace(dir) == "" {
		return catalog, nil
	}
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == dir {
				return fs.SkipAll
			}
			return err
		}
		if d.Type().IsRegular() && strings.EqualFold(filepath.Ext(path), ".xml") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return catalog, fmt.Errorf("scan podsync data: %w", err)
	}
	sort.Strings(paths)

	for _, path := range paths {
		feed, err := ReadFeedFile(path)
		if err != nil {
			catalog.Skipped = append(catalog.Skipped, SkippedFile{Path: path, Err: err})
			continue
		}
		catalog.Feeds = append(catalog.Feeds, feed)
	}
	return catalog, nil
}

// ReadFeedFile parses a single feed file. The feed id is the file stem.
func ReadFeedFile(path string) (Feed, error) {
	file, err := os.Open(path)
	if err != nil {
		return Feed{}, fmt.Errorf("open feed: %w", err)
	}
	defer file.Close()

	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	feed, err := parseFeed(file, id)
	if err != nil {
		return Feed{}, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	feed.Path = path
	return feed, nil
}

type xmlChild struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Text    string     `xml:",chardata"`
}

type xmlImage struct {
	URL string `xml:"url"`
}

func parseFeed(r io.Reader, id string) (Feed, error) {
	dec := xml.NewDecoder(r)
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = charsetReader

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return Feed{}, errNoChannel
		}
		if err != nil {
			return Feed{}, err
		}
		if start, ok := tok.(xml.StartElement); ok && start.Name.Local == "channel" {
			return parseChannel(dec, id)
		}
	}
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	return enc.NewDecoder().Reader(input), nil
}

func parseChannel(dec *xml.Decoder, id string) (Feed, error) {
	feed := Feed{ID: id}
	seen := map[string]bool{}
	for {
		tok, err := dec.Token()
		if err != nil {
			return Feed{}, err
		}
		switch t := tok.(type) {
		case xml.EndElement:
			if feed.Title == "" {
				feed.Title = id
			}
			return feed, nil
		case xml.StartElement:
			if err := parseChannelChild(dec, t, &feed, seen); err != nil {
				return Feed{}, err
			}
		}
	}
}

func parseChannelChild(dec *xml.Decoder, start xml.StartElement, feed *Feed, seen map[string]bool) error {
	plain := start.Name.Space == ""
	switch {
	case plain && start.Name.Local == "item":
		item, ok, err := readItem(dec)
		if err != nil {
			return err
		}
		if ok {
			feed.Items = append(feed.Items, item)
		}
		return nil
	case plain && (start.Name.Local == "title" || start.Name.Local == "link" || start.Name.Local == "description"):
		var child xmlChild
		if err := dec.DecodeElement(&child, &start); err != nil {
			return err
		}
		if seen[start.Name.Local] {
			return nil
		}
		seen[start.Name.Local] = true
		switch start.Name.Local {
		case "title":
			feed.Title = strings.TrimSpace(child.Text)
		case "link":
			feed.SourceURL = NormalizeURL(child.Text)
		case "description":
			feed.Description = child.Text
		}
		return nil
	case start.Name.Local == "image" && start.Name.Space == itunesNS:
		if href := attrValue(start.Attr, "href"); href != "" {
			feed.ImageURL = href
		}
		return dec.Skip()
	case plain && start.Name.Local == "image":
		var img xmlImage
		if err := dec.DecodeElement(&img, &start); err != nil {
			return err
		}
		if feed.ImageURL == "" {
			feed.ImageURL = strings.TrimSpace(img.URL)
		}
		return nil
	default:
		return dec.Skip()
	}
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
)

// readItem consumes tokens up to the end of the current `<item>` and
// serializes what it read. Elements in namespaces outside Namespaces are
// dropped together with their content, as are comments and whitespace-only
// text.
func readItem(dec *xml.Decoder) (Item, bool, error) {
	var (
		out     strings.Builder
		fields  = map[string]string{}
		depth   int
		dropped int
		field   string
		text    strings.Builder
	)
	out.WriteString("<item>")
	for {
		tok, err := dec.Token()
		if err != nil {
			return Item{}, false, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if dropped > 0 {
				dropped++
				continue
			}
			name, ok := elementName(t.Name)
			if !ok {
				dropped = 1
				continue
			}
			if depth == 1 {
				field = ""
				if t.Name.Space == "" {
					field = t.Name.Local
					text.Reset()
				}
			}
			out.WriteString("<" + name)
			for _, attr := range t.Attr {
				attrName, ok := attributeName(attr.Name)
				if !ok {
					continue
				}
				out.WriteString(" " + attrName + `="`)
				attrEscaper.WriteString(&out, attr.Value)
				out.WriteString(`"`)
			}
			out.WriteString(">")
		case xml.EndElement:
			if depth == 0 {
				out.WriteString("</item>")
				item, ok := buildItem(fields, out.String())
				return item, ok, nil
			}
			depth--
			if dropped > 0 {
				dropped--
				continue
			}
			name, _ := elementName(t.Name)
			out.WriteString("</" + name + ">")
			if depth == 0 && field != "" {
				if _, seen := fields[field]; !seen {
					fields[field] = strings.TrimSpace(text.String())
				}
				field = ""
			}
		case xml.CharData:
			if dropped > 0 || len(strings.TrimSpace(string(t))) == 0 {
				continue
			}
			textEscaper.WriteString(&out, string(t))
			if depth == 1 && field != "" {
				text.Write(t)
			}
		}
	}
}

func elementName(name xml.Name) (string, bool) {
	if name.Space == "" {
		return name.Local, true
	}
	prefix, ok := Namespaces[name.Space]
	if !ok {
		return "", false
	}
	return prefix + ":" + name.Local, true
}

func attributeName(name xml.Name) (string, bool) {
	switch {
	case name.Space == "" && name.Local == "xmlns", name.Space == "xmlns":
		return "", false
	case name.Space == "":
		return name.Local, true
	case name.Space == xmlURL:
		return "xml:" + name.Local, true
	}
	return elementName(name)
}

func buildItem(fields map[string]string, raw string) (Item, bool) {
	item := Item{
		GUID:  fields["guid"],
		Link:  fields["link"],
		Title: fields["title"],
	}
	key := item.GUID
	if key == "" {
		key = item.Link
	}
	if key == "" {
		return Item{}, false
	}
	item.DedupeKey = videoid.FromReference(item.GUID)
	if item.DedupeKey == "" {
		item.DedupeKey = videoid.FromReference(item.Link)
	}
	if item.DedupeKey == "" {
		item.DedupeKey = key
	}
	item.PublishedAt = ParsePubDate(fields["pubDate"])
	item.RawXML = raw
	return item, true
}

var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
}

// ParsePubDate parses an RSS pubDate. Unparseable values yield nil.
func ParsePubDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}

func attrValue(attrs []xml.Attr, local string) string {
	for _, attr := range attrs {
		if attr.Name.Local == local {
			return strings.TrimSpace(attr.Value)
		}
	}
	return ""
}
