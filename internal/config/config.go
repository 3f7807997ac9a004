// Package config loads OttoFit's settings: defaults, then an optional YAML
// file, then the environment (including a .env file).
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable, e.g. OTTOFIT_SESSION_WORK.
// Credentials also accept their usual unprefixed names.
const EnvPrefix = "OTTOFIT"

// Config holds all application configuration.
type Config struct {
	UserName  string `yaml:"user_name" split_words:"true"`
	Catalogue string `yaml:"catalogue" split_words:"true"` // YAML exercise file; empty uses the built-ins

	Session SessionConfig `yaml:"session"`
	Coach   CoachConfig   `yaml:"coach"`
	Speech  SpeechConfig  `yaml:"speech"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// SessionConfig sets phase lengths and cue timing.
type SessionConfig struct {
	GetReady         time.Duration `yaml:"get_ready" split_words:"true"`
	Work             time.Duration `yaml:"work" split_words:"true"`
	Rest             time.Duration `yaml:"rest" split_words:"true"`
	MotivationOffset time.Duration `yaml:"motivation_offset" split_words:"true"`
	AdHocSpacing     time.Duration `yaml:"ad_hoc_spacing" split_words:"true"`
	ResolveTimeout   time.Duration `yaml:"resolve_timeout" split_words:"true"`
}

// CoachConfig selects the chat model that writes coaching lines. An empty
// API key disables generation; cues then use the static phrases.
type CoachConfig struct {
	APIKey      string        `yaml:"api_key" envconfig:"OPENAI_API_KEY"`
	BaseURL     string        `yaml:"base_url" envconfig:"OPENAI_BASE_URL"`
	AzureAPI    string        `yaml:"azure_api_version" split_words:"true"`
	Model       string        `yaml:"model" split_words:"true"`
	Temperature float64       `yaml:"temperature" split_words:"true"`
	MaxTokens   int           `yaml:"max_tokens" split_words:"true"`
	Timeout     time.Duration `yaml:"timeout" split_words:"true"`
}

// SpeechConfig configures synthesis and playback.
type SpeechConfig struct {
	Enabled   bool    `yaml:"enabled" split_words:"true"`
	AzureKey  string  `yaml:"azure_key" envconfig:"AZURE_SPEECH_KEY"`
	Region    string  `yaml:"azure_region" envconfig:"AZURE_SPEECH_REGION"`
	Voice     string  `yaml:"voice" split_words:"true"`
	CacheDir  string  `yaml:"cache_dir" split_words:"true"`
	DiskCache bool    `yaml:"disk_cache" split_words:"true"`
	Ambient   string  `yaml:"ambient" split_words:"true"` // WAV file looped under the cues
	Volume    float64 `yaml:"ambient_volume" split_words:"true"`
}

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// StorageConfig selects where completion records go.
type StorageConfig struct {
	Driver string `yaml:"driver" split_words:"true"`
	Path   string `yaml:"path" split_words:"true"` // sqlite file
	DSN    string `yaml:"dsn" split_words:"true"`  // postgres connection string
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `yaml:"level" split_words:"true"`  // off, normal, verbose
	Format string `yaml:"format" split_words:"true"` // text, json
	File   string `yaml:"file" split_words:"true"`   // "stderr" logs to the console
}

// MetricsConfig controls the Prometheus endpoint. An empty address
// disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr" split_words:"true"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		Session: SessionConfig{
			GetReady:         10 * time.Second,
			Work:             20 * time.Second,
			Rest:             10 * time.Second,
			MotivationOffset: 10 * time.Second,
			AdHocSpacing:     8 * time.Second,
			ResolveTimeout:   6 * time.Second,
		},
		Coach: CoachConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0.9,
			MaxTokens:   60,
			Timeout:     15 * time.Second,
		},
		Speech: SpeechConfig{
			Enabled:   true,
			CacheDir:  ".ottofit-cache",
			DiskCache: true,
			Volume:    0.25,
		},
		Storage: StorageConfig{
			Driver: DriverSQLite,
			Path:   ".ottofit/history.db",
		},
		Log: LogConfig{
			Level:  "normal",
			Format: "text",
			File:   ".ottofit-logs/ottofit.log",
		},
	}
}

// Load builds the configuration. path may be empty; a missing .env file is
// not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: loading .env: %w", err)
	}

	cfg := Defaults()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
		defer f.Close()
		if err := decode(f, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r over the defaults and validates the
// result. The environment is not consulted.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Defaults()
	if err := decode(r, cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

// Validate checks that cfg is coherent. It returns every problem found,
// joined.
func Validate(cfg *Config) error {
	var errs []error

	s := cfg.Session
	for name, d := range map[string]time.Duration{
		"session.get_ready": s.GetReady,
		"session.work":      s.Work,
		"session.rest":      s.Rest,
	} {
		if d < time.Second {
			errs = append(errs, fmt.Errorf("%s must be at least 1s, got %s", name, d))
		}
	}
	if s.MotivationOffset < 0 {
		errs = append(errs, fmt.Errorf("session.motivation_offset must not be negative"))
	}
	if s.AdHocSpacing < 0 {
		errs = append(errs, fmt.Errorf("session.ad_hoc_spacing must not be negative"))
	}
	if s.ResolveTimeout <= 0 {
		errs = append(errs, fmt.Errorf("session.resolve_timeout must be positive"))
	}

	c := cfg.Coach
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("coach.temperature %.2f is outside [0, 2]", c.Temperature))
	}
	if c.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("coach.max_tokens must be positive"))
	}
	if c.AzureAPI != "" && c.BaseURL == "" {
		errs = append(errs, fmt.Errorf("coach.azure_api_version requires coach.base_url"))
	}

	if v := cfg.Speech.Volume; v < 0 || v > 1 {
		errs = append(errs, fmt.Errorf("speech.ambient_volume %.2f is outside [0, 1]", v))
	}

	switch cfg.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if cfg.Storage.Path == "" {
			errs = append(errs, fmt.Errorf("storage.path is required for the sqlite driver"))
		}
	case DriverPostgres:
		if cfg.Storage.DSN == "" {
			errs = append(errs, fmt.Errorf("storage.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q is invalid; valid values: memory, sqlite, postgres", cfg.Storage.Driver))
	}

	switch cfg.Log.Level {
	case "off", "quiet", "none", "normal", "info", "verbose", "debug":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is invalid; valid values: off, normal, verbose", cfg.Log.Level))
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is invalid; valid values: text, json", cfg.Log.Format))
	}

	return errors.Join(errs...)
}

// SpeechConfigured reports whether Azure credentials are present.
func (c *Config) SpeechConfigured() bool {
	return c.Speech.Enabled && c.Speech.AzureKey != "" && c.Speech.Region != ""
}

// CoachConfigured reports whether a chat model is available.
func (c *Config) CoachConfigured() bool {
	return c.Coach.APIKey != ""
}
