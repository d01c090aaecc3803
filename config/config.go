// Package config loads the TOML runtime configuration, the teacher's own
// pelletier/go-toml/v2 pattern (config/config.go) generalized from a fixed
// exchange-name map to the writer's shard/shm/source layout.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Writer is the [writer] table: the single shared-memory writer's fixed
// parameters.
type Writer struct {
	ShmPath           string `toml:"shm_path"`
	SymbolsTSV        string `toml:"symbols_tsv"`
	SubscribeList     string `toml:"subscribe_list"`
	ShardSize         int    `toml:"shard_size"`
	SlowThresholdUs   uint64 `toml:"slow_threshold_us"`
	MetricsAddr       string `toml:"metrics_addr"`
	DiagnosticsSocket string `toml:"diagnostics_socket"`
	RequireShmVersion bool   `toml:"require_shm_version"`
	ShmVersion        uint64 `toml:"shm_version"`
}

// Source is one [[sources]] entry: one upstream producer feeding its own
// source_id row of the shared matrix.
type Source struct {
	Name     string            `toml:"name"`
	SourceID uint64            `toml:"source_id"`
	Enabled  bool              `toml:"enabled"`
	WSURL    string            `toml:"ws_url"`
	Symbols  map[string]string `toml:"symbols"`
}

// Config is the full runtime configuration document.
type Config struct {
	Writer  Writer   `toml:"writer"`
	Sources []Source `toml:"sources"`
}

// Load reads and parses the TOML file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if c.Writer.ShardSize <= 0 {
		c.Writer.ShardSize = 100
	}

	return &c, nil
}

// EnabledSources returns only the sources marked enabled, in file order.
func (c *Config) EnabledSources() []Source {
	var out []Source
	for _, s := range c.Sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}
