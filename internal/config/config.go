package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Invalid-event policies.
const (
	OnInvalidSkip = "skip"
	OnInvalidFail = "fail"
)

// DefaultFallbackZone is the zone label attached to timestamps that carry no
// TZID. It is a display label only; no offset is ever derived from it.
const DefaultFallbackZone = "US-Eastern"

// SourceConfig describes a remote calendar that `fetch` downloads into the
// input directory as <group>.ics.
type SourceConfig struct {
	// Group is the group id; it becomes the file stem.
	Group string `yaml:"group" json:"group"`
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// OutputConfig holds where feeds are written.
type OutputConfig struct {
	// Combined is the path of the merged feed.
	Combined string `yaml:"combined" json:"combined"`
	// GroupDir receives one <group>.json per input file.
	GroupDir string `yaml:"group_dir" json:"group_dir"`
}

// Config is the top-level application configuration.
type Config struct {
	// InputDir holds one calendar file per group.
	InputDir string `yaml:"input_dir" json:"input_dir"`

	// GroupsFile is the YAML group directory (id -> name, web).
	GroupsFile string `yaml:"groups_file" json:"groups_file"`

	Output OutputConfig `yaml:"output" json:"output"`

	// FallbackZone labels timestamps without TZID.
	FallbackZone string `yaml:"fallback_zone" json:"fallback_zone"`

	// GraceDays is how many calendar days back an event may have started and
	// still be listed. 0 lists only events starting from now on.
	GraceDays int `yaml:"grace_days" json:"grace_days"`

	// OnInvalid is "skip" (drop and log offending events) or "fail" (abort
	// the run before writing anything).
	OnInvalid string `yaml:"on_invalid" json:"on_invalid"`

	// Workers bounds how many files are processed concurrently.
	Workers int `yaml:"workers" json:"workers"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// Listen is the HTTP listen address used by `serve`.
	Listen string `yaml:"listen" json:"listen"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used by `serve` to rebuild feeds.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// BasicAuth, if non-nil with both fields set, protects every endpoint
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	// CacheDB is the bbolt file holding fetch cache metadata.
	CacheDB string `yaml:"cache_db" json:"cache_db"`

	Sources []SourceConfig `yaml:"sources" json:"sources"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		InputDir:   "ics",
		GroupsFile: "data/groups.yaml",
		Output: OutputConfig{
			Combined: "data/events.json",
			GroupDir: "data/group-events",
		},
		FallbackZone: DefaultFallbackZone,
		GraceDays:    1,
		OnInvalid:    OnInvalidSkip,
		Workers:      1,
		LogLevel:     "info",
		Listen:       "127.0.0.1:8080",
		RefreshCron:  "*/15 * * * *",
		CacheDB:      "var/fetch-cache.db",
		Sources:      []SourceConfig{},
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.InputDir == "" {
		c.InputDir = def.InputDir
	}
	if c.GroupsFile == "" {
		c.GroupsFile = def.GroupsFile
	}
	if c.Output.Combined == "" {
		c.Output.Combined = def.Output.Combined
	}
	if c.Output.GroupDir == "" {
		c.Output.GroupDir = def.Output.GroupDir
	}
	if c.FallbackZone == "" {
		c.FallbackZone = def.FallbackZone
	}
	if c.GraceDays < 0 {
		c.GraceDays = def.GraceDays
	}
	switch strings.ToLower(c.OnInvalid) {
	case OnInvalidSkip, OnInvalidFail:
		c.OnInvalid = strings.ToLower(c.OnInvalid)
	default:
		c.OnInvalid = OnInvalidSkip
	}
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.CacheDB == "" {
		c.CacheDB = def.CacheDB
	}
	if c.Sources == nil {
		c.Sources = []SourceConfig{}
	}
}

// Validate reports configuration errors Normalize cannot repair.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		if s.Group == "" || s.URL == "" {
			return fmt.Errorf("sources[%d]: group and url are required", i)
		}
		if strings.ContainsAny(s.Group, "./\\") {
			return fmt.Errorf("sources[%d]: group %q must not contain dots or path separators", i, s.Group)
		}
		if seen[s.Group] {
			return fmt.Errorf("sources[%d]: duplicate group %q", i, s.Group)
		}
		seen[s.Group] = true
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is unmarshalled, normalized and validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	// Keys absent from the file keep their defaults; explicit zeros such as
	// grace_days: 0 survive.
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the given configuration to the specified path atomically
// (temp file + rename) with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".groupfeed-config-*.tmp")
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
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
