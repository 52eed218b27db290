package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"groupfeed/internal/model"
)

// FeedWriter persists one feed under a path.
type FeedWriter interface {
	WriteFeed(path string, events []model.NormalizedEvent) error
}

// JSONWriter writes feeds as indented JSON arrays.
type JSONWriter struct {
	// Indent defaults to four spaces.
	Indent string
}

// Encode renders events the way WriteFeed stores them. A nil feed encodes
// as an empty array.
func (w JSONWriter) Encode(events []model.NormalizedEvent) ([]byte, error) {
	if events == nil {
		events = []model.NormalizedEvent{}
	}
	indent := w.Indent
	if indent == "" {
		indent = "    "
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", indent)
	if err := enc.Encode(events); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFeed encodes events and replaces path atomically (temp file +
// rename), creating parent directories as needed.
func (w JSONWriter) WriteFeed(path string, events []model.NormalizedEvent) error {
	if path == "" {
		return errors.New("output path is empty")
	}
	data, err := w.Encode(events)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return WriteFileAtomic(path, data, 0o644)
}

// WriteFileAtomic replaces path with data via a temp file in the same
// directory, so readers never observe a partial file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".groupfeed-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
