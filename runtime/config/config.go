// Package config loads the stellify.yaml project file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/stellify/stellify/runtime/export"
)

// FileName is the project file looked up in the application root.
const FileName = "stellify.yaml"

// Config is the project file. Command-line flags override its fields.
type Config struct {
	Root        string            `yaml:"root"`
	Only        []string          `yaml:"only"`
	Paths       map[string]string `yaml:"paths"`
	Exclude     []string          `yaml:"exclude"`
	Concurrency int               `yaml:"concurrency"`
	Output      string            `yaml:"output"`
	Mongo       Mongo             `yaml:"mongo"`
	Debug       bool              `yaml:"debug"`
}

// Mongo configures the MongoDB sink. An empty URI disables it.
type Mongo struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
	Prefix   string `yaml:"prefix"`
	Replace  bool   `yaml:"replace"`
}

// Default returns the configuration used when no project file exists.
func Default() *Config {
	return &Config{
		Root:   ".",
		Output: "stellify.json",
		Mongo:  Mongo{Database: "stellify"},
	}
}

// Load reads path over the defaults. A missing file is not an error when
// optional is set. A relative root is resolved against the file's
// directory.
func Load(path string, optional bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if !filepath.IsAbs(cfg.Root) {
		cfg.Root = filepath.Join(filepath.Dir(path), cfg.Root)
	}
	return cfg, nil
}

// Parse decodes a project file over the defaults. Unknown keys are errors.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks kind names and numeric bounds.
func (c *Config) Validate() error {
	for _, name := range c.Only {
		if _, err := export.ParseKind(name); err != nil {
			return fmt.Errorf("only: %w", err)
		}
	}
	for name := range c.Paths {
		if _, err := export.ParseKind(name); err != nil {
			return fmt.Errorf("paths: %w", err)
		}
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative, got %d", c.Concurrency)
	}
	return nil
}

// ExportOptions converts the discovery settings.
func (c *Config) ExportOptions() (export.Options, error) {
	opts := export.Options{Root: c.Root, Exclude: c.Exclude}
	for _, name := range c.Only {
		k, err := export.ParseKind(name)
		if err != nil {
			return export.Options{}, err
		}
		opts.Only = append(opts.Only, k)
	}
	if len(c.Paths) > 0 {
		opts.Paths = make(map[export.Kind]string, len(c.Paths))
		for name, p := range c.Paths {
			k, err := export.ParseKind(name)
			if err != nil {
				return export.Options{}, err
			}
			opts.Paths[k] = p
		}
	}
	return opts, nil
}
