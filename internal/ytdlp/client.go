package ytdlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ErrMalformedOutput marks stdout that could not be decoded as yt-dlp JSON.
var ErrMalformedOutput = errors.New("malformed yt-dlp output")

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client wraps yt-dlp CLI interactions.
type Client struct {
	binary string
	exec   Executor
}

// New constructs a yt-dlp client.
func New(binary string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("yt-dlp binary required")
	}
	client := &Client{binary: binary, exec: commandExecutor{}}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Binary returns the configured executable.
func (c *Client) Binary() string { return c.binary }

var errStopListing = errors.New("listing stopped")

// ListChannel streams the flat catalog of url, calling onEntry for each
// entry as soon as its line arrives. limit <= 0 lists everything. An error
// returned by onEntry stops the listing and is returned unchanged.
func (c *Client) ListChannel(ctx context.Context, url string, limit int, onEntry func(Entry) error) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return errors.New("channel url required")
	}
	args := []string{"--flat-playlist", "--dump-json", "--ignore-errors", "--no-warnings"}
	if limit > 0 {
		args = append(args, "--playlist-end", strconv.Itoa(limit))
	}
	args = append(args, url)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var stopErr error
	seen := 0
	stop := func(err error) {
		if stopErr == nil {
			stopErr = err
		}
		cancel()
	}
	runErr := c.exec.Run(runCtx, c.binary, args, func(line string) {
		if stopErr != nil {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "{") {
			return
		}
		entry, ok, err := ParseEntry([]byte(line))
		if err != nil {
			stop(err)
			return
		}
		if !ok {
			return
		}
		if err := onEntry(entry); err != nil {
			stop(err)
			return
		}
		seen++
		if limit > 0 && seen >= limit {
			stop(errStopListing)
		}
	})

	switch {
	case errors.Is(stopErr, errStopListing):
		return nil
	case stopErr != nil:
		return stopErr
	case ctx.Err() != nil:
		return fmt.Errorf("list channel: %w", ctx.Err())
	case runErr != nil:
		return fmt.Errorf("list channel: %w", runErr)
	}
	return nil
}

// Metadata fetches full metadata for a single video page.
func (c *Client) Metadata(ctx context.Context, url string) (Entry, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return Entry{}, errors.New("video url required")
	}
	args := []string{"--dump-single-json", "--no-warnings", "--no-playlist", url}
	var out strings.Builder
	if err := c.exec.Run(ctx, c.binary, args, func(line string) {
		out.WriteString(line)
		out.WriteByte('\n')
	}); err != nil {
		return Entry{}, fmt.Errorf("metadata: %w", err)
	}
	var raw rawEntry
	if err := json.Unmarshal([]byte(out.String()), &raw); err != nil {
		return Entry{}, fmt.Errorf("metadata: %w: %v", ErrMalformedOutput, err)
	}
	entry, ok := raw.toEntry(true)
	if !ok {
		return Entry{}, fmt.Errorf("metadata: %w: missing id", ErrMalformedOutput)
	}
	return entry, nil
}

// DownloadRequest describes a single media download.
type DownloadRequest struct {
	URL       string
	VideoID   string
	OutputDir string
	AudioOnly bool
}

// Download fetches the media into OutputDir as <video_id>.<ext> and returns
// the produced path.
func (c *Client) Download(ctx context.Context, req DownloadRequest) (string, error) {
	if strings.TrimSpace(req.URL) == "" || strings.TrimSpace(req.VideoID) == "" {
		return "", errors.New("download requires url and video id")
	}
	if req.OutputDir == "" {
		return "", errors.New("download output directory required")
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("ensure output dir: %w", err)
	}
	if err := removeLeftovers(req.OutputDir, req.VideoID); err != nil {
		return "", err
	}

	args := []string{"--no-progress", "--no-playlist"}
	if req.AudioOnly {
		args = append(args, "-f", "bestaudio", "-x", "--audio-format", "mp3")
	} else {
		args = append(args, "-f", "bv*+ba/best", "--merge-output-format", "mp4")
	}
	args = append(args, "-o", filepath.Join(req.OutputDir, req.VideoID+".%(ext)s"), req.URL)

	if err := c.exec.Run(ctx, c.binary, args, nil); err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	path, err := findOutput(req.OutputDir, req.VideoID)
	if err != nil {
		return "", err
	}
	return path, nil
}

func findOutput(dir, videoID string) (string, error) {
	matches, err := outputCandidates(dir, videoID)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("download produced no output file for %s", videoID)
	}
	return matches[0], nil
}

func removeLeftovers(dir, videoID string) error {
	matches, err := filepath.Glob(filepath.Join(dir, globEscape(videoID)+".*"))
	if err != nil {
		return fmt.Errorf("scan staging: %w", err)
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale staging file: %w", err)
		}
	}
	return nil
}

func outputCandidates(dir, videoID string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, globEscape(videoID)+".*"))
	if err != nil {
		return nil, fmt.Errorf("scan output: %w", err)
	}
	var out []string
	for _, path := range matches {
		if isPartial(path) {
			continue
		}
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		out = append(out, path)
	}
	sort.Strings(out)
	return out, nil
}

func isPartial(path string) bool {
	for _, suffix := range []string{".part", ".ytdl", ".temp", ".tmp"} {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return strings.Contains(filepath.Base(path), ".part-")
}

func globEscape(value string) string {
	replacer := strings.NewReplacer("*", `\*`, "?", `\?`, "[", `\[`, `\`, `\\`)
	return replacer.Replace(value)
}
