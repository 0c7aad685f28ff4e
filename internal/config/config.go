// Package config loads adtree's YAML configuration from
// ~/.adtree/adtree.yaml, writing a default file on first run, and applies
// environment overrides for the language model endpoint.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/HendryAvila/adtree/internal/attacktree"
	"github.com/HendryAvila/adtree/internal/capec"
	"github.com/HendryAvila/adtree/internal/enrich"
	"github.com/HendryAvila/adtree/internal/knowledge"
)

// Environment overrides.
const (
	EnvBaseURL      = "ADTREE_LLM_BASE_URL"
	EnvModel        = "ADTREE_LLM_MODEL"
	EnvAPIKey       = "ADTREE_LLM_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
)

// Config is the full adtree configuration.
type Config struct {
	Data      DataConfig      `yaml:"data"`
	LLM       LLMConfig       `yaml:"llm"`
	Synthesis SynthesisConfig `yaml:"synthesis"`
	Glossary  GlossaryConfig  `yaml:"glossary"`
	Log       LogConfig       `yaml:"log"`
}

// DataConfig locates the knowledge base.
type DataConfig struct {
	// Dir holds capec.db.
	Dir string `yaml:"dir"`
	// CSVDir, when set, reads split capec_<id>.csv files instead of SQLite.
	CSVDir           string `yaml:"csv_dir,omitempty"`
	MaxSearchResults int    `yaml:"max_search_results"`
}

// LLMConfig configures the enrichment backend.
type LLMConfig struct {
	Enabled           bool          `yaml:"enabled"`
	BaseURL           string        `yaml:"base_url"`
	Model             string        `yaml:"model"`
	APIKey            string        `yaml:"api_key,omitempty"`
	Temperature       float32       `yaml:"temperature"`
	MaxTokens         int           `yaml:"max_tokens,omitempty"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

// SynthesisConfig holds tree builder defaults.
type SynthesisConfig struct {
	Mode              string   `yaml:"mode"`
	Register          string   `yaml:"register"`
	MaxDepth          int      `yaml:"max_depth"`
	ChildNatures      []string `yaml:"child_natures"`
	EnrichConcurrency int      `yaml:"enrich_concurrency"`
	Ancestry          bool     `yaml:"ancestry"`
}

// GlossaryConfig points at a custom glossary; empty uses the built-in one.
type GlossaryConfig struct {
	Path string `yaml:"path,omitempty"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration written on first run.
func Default() Config {
	store := knowledge.DefaultConfig()
	llm := enrich.DefaultConfig()
	profile := enrich.DefaultProfile()
	opts := attacktree.DefaultOptions()

	natures := make([]string, len(opts.ChildNatures))
	for i, n := range opts.ChildNatures {
		natures[i] = string(n)
	}
	return Config{
		Data: DataConfig{
			Dir:              store.DataDir,
			MaxSearchResults: store.MaxSearchResults,
		},
		LLM: LLMConfig{
			Enabled:     true,
			BaseURL:     llm.BaseURL,
			Model:       profile.Model,
			Temperature: profile.Temperature,
			Timeout:     llm.Timeout,
		},
		Synthesis: SynthesisConfig{
			Mode:              string(opts.Mode),
			Register:          string(opts.Register),
			MaxDepth:          opts.MaxDepth,
			ChildNatures:      natures,
			EnrichConcurrency: opts.EnrichConcurrency,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// DefaultPath is ~/.adtree/adtree.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".adtree", "adtree.yaml"), nil
}

// Load reads the configuration at path. An empty path means DefaultPath,
// which is created with defaults when missing; an explicit path must exist.
// Environment overrides are applied and the result validated.
func Load(path string) (Config, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return Config{}, err
		}
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			if err := createDefault(path); err != nil {
				return Config{}, err
			}
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	cfg.applyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults, so omitted keys keep their
// default values.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return cfg, nil
}

func createDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create config directory: %w", err)
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("config: marshal defaults: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	slog.Info("first run, wrote default configuration", "path", path)
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv(EnvBaseURL); v != "" {
		c.LLM.BaseURL = v
	}
	if v := getenv(EnvModel); v != "" {
		c.LLM.Model = v
	}
	switch {
	case getenv(EnvAPIKey) != "":
		c.LLM.APIKey = getenv(EnvAPIKey)
	case c.LLM.APIKey == "" && getenv(EnvOpenAIAPIKey) != "":
		c.LLM.APIKey = getenv(EnvOpenAIAPIKey)
	}
}

var validLogFormats = map[string]bool{"text": true, "json": true}

// Validate checks every enumerated setting.
func (c Config) Validate() error {
	var errs []error
	if _, err := attacktree.ParseMode(c.Synthesis.Mode); err != nil {
		errs = append(errs, err)
	}
	if _, err := enrich.ParseRegister(c.Synthesis.Register); err != nil {
		errs = append(errs, err)
	}
	if _, err := capec.ParseNatures(c.Synthesis.ChildNatures); err != nil {
		errs = append(errs, err)
	}
	if c.Synthesis.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("max_depth must not be negative, got %d", c.Synthesis.MaxDepth))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature must be between 0 and 2, got %g", c.LLM.Temperature))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if !validLogFormats[strings.ToLower(c.Log.Format)] {
		errs = append(errs, fmt.Errorf("invalid log format %q: must be text or json", c.Log.Format))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// SlogLevel parses Log.Level ("debug", "info", "warn", "error").
func (c Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	return lvl, nil
}

// ─── Component configs ──────────────────────────────────────────────────────

// StoreConfig returns the SQLite store configuration.
func (c Config) StoreConfig() knowledge.Config {
	return knowledge.Config{DataDir: c.Data.Dir, MaxSearchResults: c.Data.MaxSearchResults}
}

// EnrichConfig returns the OpenAI-compatible client configuration.
func (c Config) EnrichConfig() enrich.Config {
	return enrich.Config{
		BaseURL:           c.LLM.BaseURL,
		APIKey:            c.LLM.APIKey,
		Timeout:           c.LLM.Timeout,
		RequestsPerSecond: c.LLM.RequestsPerSecond,
	}
}

// Profile returns the model profile used for every rewrite.
func (c Config) Profile() enrich.Profile {
	return enrich.Profile{Model: c.LLM.Model, Temperature: c.LLM.Temperature, MaxTokens: c.LLM.MaxTokens}
}

// BuilderOptions converts the synthesis section into builder options.
func (c Config) BuilderOptions() (attacktree.Options, error) {
	mode, err := attacktree.ParseMode(c.Synthesis.Mode)
	if err != nil {
		return attacktree.Options{}, err
	}
	register, err := enrich.ParseRegister(c.Synthesis.Register)
	if err != nil {
		return attacktree.Options{}, err
	}
	natures, err := capec.ParseNatures(c.Synthesis.ChildNatures)
	if err != nil {
		return attacktree.Options{}, err
	}
	return attacktree.Options{
		Mode:              mode,
		Register:          register,
		Profile:           c.Profile(),
		ChildNatures:      natures,
		MaxDepth:          c.Synthesis.MaxDepth,
		EnrichConcurrency: c.Synthesis.EnrichConcurrency,
	}, nil
}
