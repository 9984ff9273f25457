package cmd

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// GeometryPreset describes a named cache geometry in defaults.yaml.
type GeometryPreset struct {
	SetBits     int    `yaml:"set_bits"`
	Lines       int    `yaml:"lines"`
	BlockBits   int    `yaml:"block_bits"`
	Description string `yaml:"description"`
}

// Config represents the full defaults.yaml structure.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type Config struct {
	Version    string                    `yaml:"version"`
	Geometries map[string]GeometryPreset `yaml:"geometries"`
}

// loadDefaultsConfig parses defaults.yaml into a Config struct.
// Uses strict field checking: typos must cause errors.
func loadDefaultsConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading defaults file %s: %w", path, err)
	}
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing defaults YAML %s: %w", path, err)
	}
	return cfg, nil
}

// PresetNames returns the preset names in sorted order.
func (c Config) PresetNames() []string {
	names := make([]string, 0, len(c.Geometries))
	for name := range c.Geometries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupPreset returns the named geometry preset from the defaults file.
func LookupPreset(path, name string) (GeometryPreset, error) {
	cfg, err := loadDefaultsConfig(path)
	if err != nil {
		return GeometryPreset{}, err
	}
	preset, ok := cfg.Geometries[name]
	if !ok {
		return GeometryPreset{}, fmt.Errorf("unknown preset %q (available: %v)", name, cfg.PresetNames())
	}
	return preset, nil
}
