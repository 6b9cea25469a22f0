// Package config loads and validates envpack configuration files.
package config

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// FileName is the per-directory configuration file.
const FileName = ".envpack.yaml"

//go:embed schemas/config.v1.schema.json
var schemaFS embed.FS

const schemaPath = "schemas/config.v1.schema.json"

// Config represents an envpack configuration file.
type Config struct {
	// Placeholder is the template token replaced with the environment path
	Placeholder string `yaml:"placeholder"`

	// Template is the build description template, empty for the bundled one
	Template string `yaml:"template"`

	// Archiver selects how the archive is written (native, tar)
	Archiver string `yaml:"archiver"`

	// TarBinary is the tar executable used by the tar archiver
	TarBinary string `yaml:"tar_binary"`

	// Timeout bounds a whole build, zero for no limit
	Timeout time.Duration `yaml:"timeout"`

	Builder BuilderConfig `yaml:"builder"`
	Watch   WatchConfig   `yaml:"watch"`
}

// BuilderConfig holds image build settings.
type BuilderConfig struct {
	Engine    string            `yaml:"engine"` // cli, api
	Binary    string            `yaml:"binary"`
	Pull      bool              `yaml:"pull"`
	NoCache   bool              `yaml:"no_cache"`
	Platform  string            `yaml:"platform"`
	BuildArgs map[string]string `yaml:"build_args"`
}

// WatchConfig holds watch mode settings.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
	Ignore   []string      `yaml:"ignore"`
}

// ValidationError lists every schema violation found in a file.
type ValidationError struct {
	Path     string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s does not match the configuration schema:\n  - %s",
		e.Path, strings.Join(e.Problems, "\n  - "))
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads, validates and parses the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := ValidateBytes(path, data); err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply defaults
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Find returns the configuration file to use. An explicit path must exist.
// Otherwise FileName in dir and then envpack/config.yaml under the XDG
// config home are tried. An empty result means no file was found.
func Find(explicit, dir string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file: %w", err)
		}
		return explicit, nil
	}

	candidates := []string{
		filepath.Join(dir, FileName),
		filepath.Join(xdg.ConfigHome, "envpack", "config.yaml"),
	}
	for _, c := range candidates {
		info, err := os.Stat(c)
		if err == nil && !info.IsDir() {
			return c, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("config file: %w", err)
		}
	}
	return "", nil
}

// Resolve finds and loads the configuration, falling back to Default.
func Resolve(explicit, dir string) (*Config, string, error) {
	path, err := Find(explicit, dir)
	if err != nil {
		return nil, "", err
	}
	if path == "" {
		return Default(), "", nil
	}
	c, err := Load(path)
	if err != nil {
		return nil, path, err
	}
	return c, path, nil
}

// ValidateBytes checks YAML data against the configuration schema. name is
// only used in the error.
func ValidateBytes(name string, data []byte) error {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if doc == nil {
		// An empty file is a valid, all-defaults config.
		return nil
	}

	schemaBytes, err := schemaFS.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("failed to load schema: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaBytes),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	verr := &ValidationError{Path: name}
	for _, desc := range result.Errors() {
		verr.Problems = append(verr.Problems, desc.String())
	}
	return verr
}

// Validate checks semantic constraints the schema cannot express.
func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if c.Watch.Debounce <= 0 {
		return fmt.Errorf("watch.debounce must be positive")
	}
	for _, pattern := range c.Watch.Ignore {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("watch.ignore: bad pattern %q: %w", pattern, err)
		}
	}
	if c.Template != "" {
		if _, err := os.Stat(c.Template); err != nil {
			return fmt.Errorf("template: %w", err)
		}
	}
	return nil
}

// applyDefaults sets default values for missing fields.
func (c *Config) applyDefaults() {
	if c.Placeholder == "" {
		c.Placeholder = "{conda_env}"
	}
	if c.Archiver == "" {
		c.Archiver = "native"
	}
	if c.TarBinary == "" {
		c.TarBinary = "tar"
	}
	if c.Builder.Engine == "" {
		c.Builder.Engine = "cli"
	}
	if c.Builder.Binary == "" {
		c.Builder.Binary = "docker"
	}
	if c.Builder.BuildArgs == nil {
		c.Builder.BuildArgs = map[string]string{}
	}
	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = 2 * time.Second
	}
	if c.Watch.Ignore == nil {
		c.Watch.Ignore = []string{".git", "__pycache__", "*.pyc", "conda-meta/history"}
	}
}
