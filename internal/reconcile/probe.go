package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"podcompanion/internal/videoid"
)

// Probe reports whether the external tool already holds media for a video.
type Probe interface {
	Satisfied(ctx context.Context, videoID string) (bool, error)
}

// NoProbe never reports a video as satisfied.
type NoProbe struct{}

// Satisfied always returns false.
func (NoProbe) Satisfied(context.Context, string) (bool, error) { return false, nil }

var mediaExtensions = map[string]struct{}{
	".mp3": {}, ".m4a": {}, ".aac": {}, ".ogg": {}, ".opus": {}, ".flac": {}, ".wav": {},
	".mp4": {}, ".m4v": {}, ".webm": {}, ".mkv": {}, ".mov": {},
}

// DirectoryProbe scans a download directory tree for a non-empty media file
// whose name carries the requested id in one of the forms videoid.InFilename
// accepts. Files that merely contain the id somewhere in their name do not
// count.
type DirectoryProbe struct {
	root string
}

// NewDirectoryProbe returns a probe rooted at dir. An empty dir disables it.
func NewDirectoryProbe(dir string) *DirectoryProbe {
	return &DirectoryProbe{root: strings.TrimSpace(dir)}
}

// Satisfied walks the tree and returns on the first exact match.
func (p *DirectoryProbe) Satisfied(ctx context.Context, videoID string) (bool, error) {
	if p == nil || p.root == "" || videoID == "" {
		return false, nil
	}
	found := false
	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == p.root && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		name := d.Name()
		if d.IsDir() {
			if path != p.root && strings.HasPrefix(name, ".") {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || strings.HasPrefix(name, ".") {
			return nil
		}
		if _, ok := mediaExtensions[strings.ToLower(filepath.Ext(name))]; !ok {
			return nil
		}
		if !videoid.InFilename(name, videoID) {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() == 0 {
			return nil
		}
		found = true
		return fs.SkipAll
	})
	if err != nil {
		return false, fmt.Errorf("probe %s: %w", p.root, err)
	}
	return found, nil
}
