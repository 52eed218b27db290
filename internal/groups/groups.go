package groups

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Group is the display metadata for one organizational group.
type Group struct {
	Name string `yaml:"name" json:"name"`
	Web  string `yaml:"web" json:"web"`
}

// Directory maps group ids (calendar file stems) to their metadata.
type Directory map[string]Group

// Lookup returns the metadata for id.
func (d Directory) Lookup(id string) (Group, bool) {
	g, ok := d[id]
	return g, ok
}

// IDs returns the known group ids in sorted order.
func (d Directory) IDs() []string {
	ids := make([]string, 0, len(d))
	for id := range d {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Load reads a YAML document of the form
//
//	chess:
//	  name: Chess Club
//	  web: https://example.org/chess
func Load(path string) (Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read groups %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a group directory from YAML bytes.
func Parse(data []byte) (Directory, error) {
	dir := Directory{}
	if err := yaml.Unmarshal(data, &dir); err != nil {
		return nil, fmt.Errorf("parse groups: %w", err)
	}
	return dir, nil
}
