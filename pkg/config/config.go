// Package config loads vscript configuration from project and user files.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/visionscript/vscript/pkg/backend"
	"github.com/visionscript/vscript/pkg/value"
)

const (
	// ProjectFile is looked up in the project directory.
	ProjectFile = ".vscript.yaml"
	// DefaultTimeout applies when backend.timeout is not set.
	DefaultTimeout = 60 * time.Second
	// DefaultRetries applies when backend.retries is not set.
	DefaultRetries = 2
)

//go:embed schema.json
var schema string

// Backend configures the inference backend.
type Backend struct {
	Kind     string `yaml:"kind"`
	Endpoint string `yaml:"endpoint,omitempty"`
	Timeout  string `yaml:"timeout,omitempty"`
	Retries  *int   `yaml:"retries,omitempty"`
}

// Config is the decoded configuration document.
type Config struct {
	Backend  Backend        `yaml:"backend"`
	Model    string         `yaml:"model,omitempty"`
	ShowDir  string         `yaml:"show_dir,omitempty"`
	IndexDSN string         `yaml:"index_dsn,omitempty"`
	Inputs   map[string]any `yaml:"inputs,omitempty"`

	// Source is the file the configuration was read from, or "" for the
	// defaults.
	Source string `yaml:"-"`
}

// Error reports an unreadable or invalid configuration file.
type Error struct {
	Path     string
	Problems []string
	Err      error
}

func (e *Error) Error() string {
	if len(e.Problems) > 0 {
		return fmt.Sprintf("%s: %s", e.Path, strings.Join(e.Problems, "; "))
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	return &Config{
		Backend: Backend{Kind: "none"},
		Inputs:  map[string]any{},
	}
}

// Load reads configuration with precedence: project (.vscript.yaml) →
// user (~/.vscript/config.yaml) → defaults. A file that exists but does not
// parse or validate is an error; a missing file falls through.
func Load(projectDir string) (*Config, error) {
	projectPath := filepath.Join(projectDir, ProjectFile)
	cfg, err := LoadFile(projectPath)
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		return cfg, err
	}

	if homeDir, herr := os.UserHomeDir(); herr == nil {
		userPath := filepath.Join(homeDir, ".vscript", "config.yaml")
		cfg, err = LoadFile(userPath)
		if err == nil || !errors.Is(err, os.ErrNotExist) {
			return cfg, err
		}
	}

	return Default(), nil
}

// LoadFile reads and validates a single configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	return Parse(data, path)
}

// Parse decodes and validates a configuration document.
func Parse(data []byte, path string) (*Config, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	if doc == nil {
		doc = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, re := range result.Errors() {
			problems = append(problems, re.String())
		}
		return nil, &Error{Path: path, Problems: problems}
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	if cfg.Backend.Kind == "" {
		cfg.Backend.Kind = "none"
	}
	if cfg.Backend.Kind == "http" && cfg.Backend.Endpoint == "" {
		return nil, &Error{Path: path, Problems: []string{"backend.endpoint is required when backend.kind is http"}}
	}
	if _, err := cfg.timeout(); err != nil {
		return nil, &Error{Path: path, Problems: []string{"backend.timeout: " + err.Error()}}
	}
	cfg.Source = path
	return cfg, nil
}

func (c *Config) timeout() (time.Duration, error) {
	if c.Backend.Timeout == "" {
		return DefaultTimeout, nil
	}
	return time.ParseDuration(c.Backend.Timeout)
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// InputValues converts the configured input bindings to runtime values.
func (c *Config) InputValues() map[string]value.Value {
	out := make(map[string]value.Value, len(c.Inputs))
	for k, v := range c.Inputs {
		out[k] = value.FromAny(v)
	}
	return out
}

// NewBackend builds the configured inference backend.
func (c *Config) NewBackend(log zerolog.Logger) (backend.Backend, error) {
	switch c.Backend.Kind {
	case "", "none":
		return backend.Unavailable{}, nil
	case "http":
		timeout, err := c.timeout()
		if err != nil {
			return nil, err
		}
		retries := DefaultRetries
		if c.Backend.Retries != nil {
			retries = *c.Backend.Retries
		}
		return backend.NewHTTP(c.Backend.Endpoint,
			backend.WithTimeout(timeout),
			backend.WithRetries(retries),
			backend.WithLogger(log),
		), nil
	}
	return nil, fmt.Errorf("unknown backend kind %q", c.Backend.Kind)
}
