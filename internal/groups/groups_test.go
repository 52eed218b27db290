package groups

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadAndLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "groups.yaml")
	data := "hike:\n  name: Hiking Club\n  web: https://example.org/hike\nchess:\n  name: Chess Club\n  web: https://example.org/chess\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	dir, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	g, ok := dir.Lookup("chess")
	if !ok || g.Name != "Chess Club" || g.Web != "https://example.org/chess" {
		t.Fatalf("unexpected chess metadata: %+v (ok=%t)", g, ok)
	}
	if _, ok := dir.Lookup("missing"); ok {
		t.Fatalf("expected unknown group lookup to fail")
	}
	if got := dir.IDs(); !reflect.DeepEqual(got, []string{"chess", "hike"}) {
		t.Fatalf("expected sorted ids, got %v", got)
	}
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	if _, err := Parse([]byte("chess: [unterminated")); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
