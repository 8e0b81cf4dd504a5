package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"podcompanion/internal/config"
)

const userAgent = "podcompanion/0.1"

// Event identifies a notification template.
type Event string

const (
	EventDownloadCompleted Event = "download_completed"
	EventDownloadFailed    Event = "download_failed"
	EventIndexFailed       Event = "index_failed"
	EventTest              Event = "test"
)

// Payload carries template fields for an event.
type Payload map[string]string

// Service publishes job outcome events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service when a topic is configured and a
// no-op otherwise. With notify_success disabled only failures are sent.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	return &ntfyService{
		endpoint:      topic,
		client:        &http.Client{Timeout: cfg.NotificationTimeout()},
		notifySuccess: cfg.Notifications.NotifySuccess,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint      string
	client        *http.Client
	notifySuccess bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if event == EventDownloadCompleted && !n.notifySuccess {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return fmt.Errorf("unknown notification event %q", event)
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	get := func(key string) string { return strings.TrimSpace(payload[key]) }
	switch event {
	case EventDownloadCompleted:
		title := firstNonEmpty(get("title"), get("videoID"))
		body := fmt.Sprintf("Downloaded: %s", title)
		if file := get("filename"); file != "" {
			body += "\nFile: " + file
		}
		return message{
			title: "podcompanion - Episode Ready",
			body:  body,
			tags:  []string{"podcompanion", "download", "completed"},
		}, true
	case EventDownloadFailed:
		return message{
			title:    "podcompanion - Download Failed",
			body:     fmt.Sprintf("Download failed: %s\n%s", get("videoID"), firstNonEmpty(get("error"), "unknown error")),
			tags:     []string{"podcompanion", "download", "failed"},
			priority: "high",
		}, true
	case EventIndexFailed:
		return message{
			title:    "podcompanion - Index Failed",
			body:     fmt.Sprintf("Catalog scan failed: %s\n%s", firstNonEmpty(get("channel"), "unknown channel"), firstNonEmpty(get("error"), "unknown error")),
			tags:     []string{"podcompanion", "index", "failed"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "podcompanion - Test",
			body:     "Notification system test",
			tags:     []string{"podcompanion", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
