package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"podcompanion/internal/config"
	"podcompanion/internal/notifications"
)

type capturedRequest struct {
	title    string
	tags     string
	priority string
	body     string
}

func newCaptureServer(t *testing.T, status int) (*httptest.Server, <-chan capturedRequest) {
	t.Helper()
	requests := make(chan capturedRequest, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests <- capturedRequest{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, requests
}

func configWithTopic(topic string) *config.Config {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = topic
	return &cfg
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	svc := notifications.NewService(configWithTopic(""))
	if err := svc.Publish(context.Background(), notifications.EventDownloadFailed, notifications.Payload{"videoID": "abc"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectBody     string
		expectTags     string
		expectPriority string
	}{
		{
			name:        "download completed",
			event:       notifications.EventDownloadCompleted,
			payload:     notifications.Payload{"title": "Episode One", "videoID": "aaaaaaaaaaa", "filename": "episode-one.mp3"},
			expectTitle: "podcompanion - Episode Ready",
			expectBody:  "Downloaded: Episode One\nFile: episode-one.mp3",
			expectTags:  "podcompanion,download,completed",
		},
		{
			name:           "download failed",
			event:          notifications.EventDownloadFailed,
			payload:        notifications.Payload{"videoID": "aaaaaaaaaaa", "error": "yt-dlp exited 1"},
			expectTitle:    "podcompanion - Download Failed",
			expectBody:     "Download failed: aaaaaaaaaaa\nyt-dlp exited 1",
			expectTags:     "podcompanion,download,failed",
			expectPriority: "high",
		},
		{
			name:           "index failed without error text",
			event:          notifications.EventIndexFailed,
			payload:        notifications.Payload{"channel": "Example"},
			expectTitle:    "podcompanion - Index Failed",
			expectBody:     "Catalog scan failed: Example\nunknown error",
			expectTags:     "podcompanion,index,failed",
			expectPriority: "high",
		},
		{
			name:           "test",
			event:          notifications.EventTest,
			expectTitle:    "podcompanion - Test",
			expectBody:     "Notification system test",
			expectTags:     "podcompanion,test",
			expectPriority: "low",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, requests := newCaptureServer(t, http.StatusOK)
			svc := notifications.NewService(configWithTopic(srv.URL + "/topic"))
			if err := svc.Publish(context.Background(), tt.event, tt.payload); err != nil {
				t.Fatalf("Publish failed: %v", err)
			}
			got := <-requests
			if got.title != tt.expectTitle {
				t.Fatalf("title = %q, want %q", got.title, tt.expectTitle)
			}
			if got.body != tt.expectBody {
				t.Fatalf("body = %q, want %q", got.body, tt.expectBody)
			}
			if got.tags != tt.expectTags {
				t.Fatalf("tags = %q, want %q", got.tags, tt.expectTags)
			}
			if got.priority != tt.expectPriority {
				t.Fatalf("priority = %q, want %q", got.priority, tt.expectPriority)
			}
		})
	}
}

func TestNtfyServiceSkipsSuccessWhenDisabled(t *testing.T) {
	srv, requests := newCaptureServer(t, http.StatusOK)
	cfg := configWithTopic(srv.URL)
	cfg.Notifications.NotifySuccess = false
	svc := notifications.NewService(cfg)

	if err := svc.Publish(context.Background(), notifications.EventDownloadCompleted, notifications.Payload{"videoID": "abc"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if err := svc.Publish(context.Background(), notifications.EventDownloadFailed, notifications.Payload{"videoID": "abc"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if len(requests) != 1 {
		t.Fatalf("expected only the failure to be sent, got %d requests", len(requests))
	}
	if got := <-requests; got.title != "podcompanion - Download Failed" {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	srv, _ := newCaptureServer(t, http.StatusForbidden)
	svc := notifications.NewService(configWithTopic(srv.URL))
	err := svc.Publish(context.Background(), notifications.EventTest, nil)
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}

func TestNtfyServiceRejectsUnknownEvent(t *testing.T) {
	srv, requests := newCaptureServer(t, http.StatusOK)
	svc := notifications.NewService(configWithTopic(srv.URL))
	if err := svc.Publish(context.Background(), notifications.Event("bogus"), nil); err == nil {
		t.Fatal("expected unknown event error")
	}
	if len(requests) != 0 {
		t.Fatalf("expected no request for unknown event")
	}
}
