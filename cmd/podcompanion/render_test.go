package main

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusError, "not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Daemon:", "[ERROR] not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusOK, "running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestRenderTableAlignsColumns(t *testing.T) {
	out := renderTable([]string{"ID", "Name"}, [][]string{{"7", "Seven"}, {"12"}}, []columnAlignment{alignRight})
	if !strings.Contains(out, "Seven") || !strings.Contains(out, "12") {
		t.Fatalf("unexpected table output %q", out)
	}
	if renderTable(nil, nil, nil) != "" {
		t.Fatal("expected empty output without headers")
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := formatDate(nil); got != "unknown" {
		t.Fatalf("formatDate(nil) = %q", got)
	}
	ts := time.Date(2024, 3, 9, 15, 4, 0, 0, time.UTC)
	if got := formatTime(&ts); got != "2024-03-09 15:04" {
		t.Fatalf("formatTime = %q", got)
	}
	if got := truncate("a  very\nlong title", 8); got != "a very …" {
		t.Fatalf("truncate = %q", got)
	}
	if got := dash("  "); got != "-" {
		t.Fatalf("dash = %q", got)
	}
}
