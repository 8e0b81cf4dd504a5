package podsync

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// FeedSource is one `[feeds.<id>]` table from the Podsync configuration.
type FeedSource struct {
	ID  string
	URL string
}

type fileConfig struct {
	Feeds map[string]feedTable `toml:"feeds"`
}

type feedTable struct {
	URL string `toml:"url"`
}

// ReadConfig parses the Podsync configuration at path. A missing file yields
// no sources and no error. Feeds without a url are skipped. Results are
// ordered by feed id.
func ReadConfig(path string) ([]FeedSource, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read podsync config: %w", err)
	}
	var cfg fileConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse podsync config: %w", err)
	}

	sources := make([]FeedSource, 0, len(cfg.Feeds))
	for id, table := range cfg.Feeds {
		url := NormalizeURL(table.URL)
		if url == "" {
			continue
		}
		sources = append(sources, FeedSource{ID: id, URL: url})
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].ID < sources[j].ID })
	return sources, nil
}

// NormalizeURL trims whitespace and trailing slashes.
func NormalizeURL(url string) string {
	return strings.TrimRight(strings.TrimSpace(url), "/")
}
