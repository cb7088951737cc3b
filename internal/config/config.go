// Package config loads bddgen.yml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the config file written by `bddgen init`.
const FileName = "bddgen.yml"

// Environment variables read by ApplyEnv.
const (
	EnvAPIKey = "GEMINI_API_KEY"
	EnvModel  = "BDDGEN_MODEL"
)

// Config holds project-level settings.
type Config struct {
	Model        string        `yaml:"model,omitempty"`
	MaxAttempts  int           `yaml:"maxAttempts,omitempty"`
	BaseDelay    time.Duration `yaml:"baseDelay,omitempty"`
	MinInterval  time.Duration `yaml:"minInterval,omitempty"`
	OutputDir    string        `yaml:"outputDir,omitempty"`
	Feature      string        `yaml:"feature,omitempty"`
	Precondition string        `yaml:"precondition,omitempty"`
	Languages    []string      `yaml:"languages,omitempty"`

	// APIKey comes from the environment only.
	APIKey string `yaml:"-"`
}

// Default returns the settings used when bddgen.yml is absent.
func Default() Config {
	return Config{
		Model:        "gemini-2.0-flash",
		MaxAttempts:  3,
		BaseDelay:    500 * time.Millisecond,
		MinInterval:  500 * time.Millisecond,
		OutputDir:    "bdd/output",
		Feature:      "Application Functionality",
		Precondition: "User provided with application URL",
		Languages:    []string{"javascript", "java", "python"},
	}
}

// Load reads bddgen.yml or bddgen.yaml from dir. A missing file yields the
// defaults, not an error.
func Load(dir string) (*Config, error) {
	for _, name := range []string{FileName, "bddgen.yaml"} {
		cfg, err := LoadFile(filepath.Join(dir, name))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		return cfg, err
	}
	cfg := Default()
	return &cfg, nil
}

// LoadFile reads one config file. Unset fields keep their defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return &cfg, nil
}

var knownLanguages = map[string]bool{"javascript": true, "java": true, "python": true}

func (c *Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("maxAttempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.BaseDelay < 0 || c.MinInterval < 0 {
		return errors.New("delays must not be negative")
	}
	for i, l := range c.Languages {
		l = strings.ToLower(strings.TrimSpace(l))
		if !knownLanguages[l] {
			return fmt.Errorf("unknown language %q", c.Languages[i])
		}
		c.Languages[i] = l
	}
	return nil
}

// ApplyEnv overlays environment settings.
func (c *Config) ApplyEnv(getenv func(string) string) {
	c.APIKey = strings.TrimSpace(getenv(EnvAPIKey))
	if m := strings.TrimSpace(getenv(EnvModel)); m != "" {
		c.Model = m
	}
}

// Write saves c as YAML at path.
func Write(path string, c Config) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
