package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"groupfeed/internal/model"
)

func TestWriteFeedEmptyIsArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "group-events", "chess.json")

	if err := (JSONWriter{}).WriteFeed(path, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(data)) != "[]" {
		t.Fatalf("expected empty array, got %q", data)
	}
}

func TestWriteFeedIndentsFourSpaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.json")
	start := model.Stamp{Time: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC), Zone: "UTC", Valid: true}
	events := []model.NormalizedEvent{{
		Event: model.Event{
			Group: "chess",
			Props: map[string]any{"SUMMARY": "Blitz & rapid"},
			Start: &start,
		},
		GroupName: "Chess Club",
	}}

	if err := (JSONWriter{}).WriteFeed(path, events); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "\n    {\n        \"SUMMARY\": \"Blitz & rapid\",") {
		t.Fatalf("unexpected layout:\n%s", data)
	}

	var back []map[string]any
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(back) != 1 || back[0]["groupName"] != "Chess Club" {
		t.Fatalf("unexpected decoded feed: %v", back)
	}
}

func TestWriteFeedRejectsEmptyPath(t *testing.T) {
	if err := (JSONWriter{}).WriteFeed("", nil); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
