package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads, parses, validates and defaults a configuration
// file from disk.
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config path is required")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return LoadConfigFromBytes(data)
}

// LoadConfigFromBytes parses, validates and defaults a configuration
// already read into memory.
func LoadConfigFromBytes(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	setDefaults(&cfg)
	return &cfg, nil
}

// validateConfig checks structural correctness: every node names a
// kind, a non-empty parent, and a parent that actually exists
// somewhere in the tree (the root or an earlier-declared node); node
// IDs (including the root's) are unique.
func validateConfig(cfg *Config) error {
	if cfg.ClockTree.Root.ID == "" {
		return fmt.Errorf("clock_tree.root.id is required")
	}
	if cfg.ClockTree.Root.TickRate < 0 {
		return fmt.Errorf("clock_tree.root.tick_rate must be > 0")
	}

	known := map[string]bool{cfg.ClockTree.Root.ID: true}
	for i, n := range cfg.ClockTree.Nodes {
		ctx := fmt.Sprintf("clock_tree.nodes[%d]", i)
		if n.ID == "" {
			return fmt.Errorf("%s: id is required", ctx)
		}
		if known[n.ID] {
			return fmt.Errorf("%s: duplicate node id %q", ctx, n.ID)
		}
		if n.Parent == "" {
			return fmt.Errorf("%s: parent is required", ctx)
		}
		if !known[n.Parent] {
			return fmt.Errorf("%s: parent %q is not the root or an earlier-declared node", ctx, n.Parent)
		}
		switch n.Kind {
		case KindCorrelated:
			if n.TickRate < 0 {
				return fmt.Errorf("%s: tick_rate must be > 0", ctx)
			}
		case KindOffset:
			// offset's tickRate/speed always mirror the parent; no
			// node-level fields to validate.
		default:
			return fmt.Errorf("%s: unsupported kind %q, want %q or %q", ctx, n.Kind, KindCorrelated, KindOffset)
		}
		known[n.ID] = true
	}

	if cfg.HTTP.Enabled {
		// Listen is allowed to be empty here; setDefaults fills it in.
	}
	return nil
}

// SaveConfig serializes cfg back to YAML at path, creating parent
// directories as needed.
func SaveConfig(cfg *Config, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
