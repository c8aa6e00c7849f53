package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"bitbucket.org/creachadair/stringset"
	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration.
type Config struct {
	TypeMappings map[string]string `yaml:"typeMappings" json:"typeMappings"`
	Options      Options           `yaml:"options" json:"options"`
}

// Options represents extraction options.
type Options struct {
	Output       string   `yaml:"output" json:"output"`
	Compiler     string   `yaml:"compiler" json:"compiler"`
	Arch         string   `yaml:"arch" json:"arch"`
	ExportedOnly bool     `yaml:"exportedOnly" json:"exportedOnly"`
	CNames       bool     `yaml:"cNames" json:"cNames"`
	Tests        bool     `yaml:"tests" json:"tests"`
	BuildTags    []string `yaml:"buildTags" json:"buildTags"`
	IncludeTypes []string `yaml:"includeTypes" json:"includeTypes"`
	ExcludeTypes []string `yaml:"excludeTypes" json:"excludeTypes"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		TypeMappings: make(map[string]string),
		Options:      DefaultOptions(),
	}
}

// LoadFile loads configuration from a file (YAML or JSON based on extension).
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))

	var loaded Config
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &loaded); err != nil {
			return fmt.Errorf("parsing YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &loaded); err != nil {
			return fmt.Errorf("parsing JSON config: %w", err)
		}
	default:
		// Try YAML first, then JSON
		if err := yaml.Unmarshal(data, &loaded); err != nil {
			if err := json.Unmarshal(data, &loaded); err != nil {
				return fmt.Errorf("unable to parse config as YAML or JSON")
			}
		}
	}

	c.merge(&loaded)

	return nil
}

// merge merges the loaded config into the current config.
func (c *Config) merge(loaded *Config) {
	// Loaded mappings override existing ones
	for k, v := range loaded.TypeMappings {
		c.TypeMappings[k] = v
	}

	if loaded.Options.Output != "" {
		c.Options.Output = loaded.Options.Output
	}
	if loaded.Options.Compiler != "" {
		c.Options.Compiler = loaded.Options.Compiler
	}
	if loaded.Options.Arch != "" {
		c.Options.Arch = loaded.Options.Arch
	}
	c.Options.ExportedOnly = c.Options.ExportedOnly || loaded.Options.ExportedOnly
	c.Options.CNames = c.Options.CNames || loaded.Options.CNames
	c.Options.Tests = c.Options.Tests || loaded.Options.Tests
	if len(loaded.Options.BuildTags) > 0 {
		c.Options.BuildTags = loaded.Options.BuildTags
	}
	if len(loaded.Options.IncludeTypes) > 0 {
		c.Options.IncludeTypes = loaded.Options.IncludeTypes
	}
	if len(loaded.Options.ExcludeTypes) > 0 {
		c.Options.ExcludeTypes = loaded.Options.ExcludeTypes
	}
}

// Mappings returns the type name mappings to apply, including the C name
// preset when CNames is set. Explicit mappings win over the preset.
func (c *Config) Mappings() map[string]string {
	m := make(map[string]string)
	if c.Options.CNames {
		for k, v := range CTypeMappings() {
			m[k] = v
		}
	}
	for k, v := range c.TypeMappings {
		m[k] = v
	}
	return m
}

// Filter returns a predicate reporting whether a declared type should be
// reflected, based on the exported, include and exclude options. The
// predicate takes the package-qualified name ("example.com/models.Mesh"); a
// listed type matches either that name or the bare type name ("Mesh").
func (c *Config) Filter() func(name string, isExported bool) bool {
	include := stringset.New(c.Options.IncludeTypes...)
	exclude := stringset.New(c.Options.ExcludeTypes...)
	exportedOnly := c.Options.ExportedOnly
	return func(name string, isExported bool) bool {
		if exportedOnly && !isExported {
			return false
		}
		if include.Len() > 0 && !listed(include, name) {
			return false
		}
		return !listed(exclude, name)
	}
}

func listed(set stringset.Set, qualified string) bool {
	if set.Contains(qualified) {
		return true
	}
	if i := strings.LastIndexByte(qualified, '.'); i >= 0 {
		return set.Contains(qualified[i+1:])
	}
	return false
}
