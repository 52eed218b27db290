package store

import (
	"errors"
	"path/filepath"
	"testing"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "var", "cache.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGet(t *testing.T) {
	s := openTemp(t)
	url := "https://example.org/chess.ics?token=secret"

	if _, err := s.Get(url); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Put(Entry{URL: url, ETag: `"v1"`, LastModified: "Mon, 11 Mar 2024 09:00:00 GMT"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.Get(url)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ETag != `"v1"` || got.LastModified != "Mon, 11 Mar 2024 09:00:00 GMT" || got.URL != url {
		t.Fatalf("unexpected entry %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Fatalf("expected UpdatedAt to be stamped")
	}
}

func TestPutRequiresURL(t *testing.T) {
	if err := openTemp(t).Put(Entry{ETag: "x"}); err == nil {
		t.Fatalf("expected error for entry without url")
	}
}

func TestEntriesSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(Entry{URL: "https://example.org/a.ics", ETag: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if e, err := s.Get("https://example.org/a.ics"); err != nil || e.ETag != "a" {
		t.Fatalf("expected persisted entry, got %+v, %v", e, err)
	}
}
