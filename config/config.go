// Package config holds the YAML configuration shared by the CLI and the
// HTTP server.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alexshd/tts"
)

// Config is the full configuration. Every field is optional in the file;
// missing fields keep their DefaultConfig values.
type Config struct {
	Analysis AnalysisConfig `yaml:"analysis"`
	Fit      FitConfig      `yaml:"fit"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// AnalysisConfig selects the shift model and its starting constants.
type AnalysisConfig struct {
	ReferenceTemperature float64 `yaml:"reference_temperature"` // °C
	Method               string  `yaml:"method"`                // WLF or Arrhenius
	C1                   float64 `yaml:"c1"`
	C2                   float64 `yaml:"c2"`
	Ea                   float64 `yaml:"ea"` // J/mol
}

// FitConfig controls parameter fitting.
type FitConfig struct {
	Enabled       bool    `yaml:"enabled"`
	MaxIterations int     `yaml:"max_iterations"`
	Tolerance     float64 `yaml:"tolerance"`
}

// ServerConfig configures the HTTP transport and its session store.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	SessionTTL  string `yaml:"session_ttl"`
	MaxSessions int    `yaml:"max_sessions"`
	MaxUpload   int64  `yaml:"max_upload_bytes"`
}

// LoggingConfig sets the log level: debug, info, warn or error.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	fit := tts.DefaultFitOptions()
	return &Config{
		Analysis: AnalysisConfig{
			ReferenceTemperature: 25,
			Method:               "WLF",
			C1:                   tts.DefaultWLF.C1,
			C2:                   tts.DefaultWLF.C2,
			Ea:                   tts.DefaultArrhenius.Ea,
		},
		Fit: FitConfig{
			Enabled:       false,
			MaxIterations: fit.MaxIterations,
			Tolerance:     fit.Tolerance,
		},
		Server: ServerConfig{
			Addr:        ":8080",
			SessionTTL:  "30m",
			MaxSessions: 1000,
			MaxUpload:   16 << 20,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("TTS_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if level := os.Getenv("TTS_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// ValidMethods lists the accepted shift method names.
var ValidMethods = []string{"WLF", "Arrhenius"}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := c.ShiftMethod(); err != nil {
		return err
	}
	if c.Fit.MaxIterations <= 0 {
		return fmt.Errorf("fit.max_iterations must be positive, got %d", c.Fit.MaxIterations)
	}
	if c.Fit.Tolerance <= 0 {
		return fmt.Errorf("fit.tolerance must be positive, got %g", c.Fit.Tolerance)
	}
	ttl, err := time.ParseDuration(c.Server.SessionTTL)
	if err != nil {
		return fmt.Errorf("invalid server.session_ttl: %w", err)
	}
	if ttl <= 0 {
		return fmt.Errorf("server.session_ttl must be positive, got %s", ttl)
	}
	if c.Server.MaxSessions <= 0 {
		return fmt.Errorf("server.max_sessions must be positive, got %d", c.Server.MaxSessions)
	}
	if c.Server.MaxUpload <= 0 {
		return fmt.Errorf("server.max_upload_bytes must be positive, got %d", c.Server.MaxUpload)
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

// ShiftMethod builds the configured model from its starting constants.
func (c *Config) ShiftMethod() (tts.ShiftMethod, error) {
	return Method(c.Analysis.Method, c.Analysis.C1, c.Analysis.C2, c.Analysis.Ea)
}

// Method maps a method name (case-insensitive) and constants to a model.
func Method(name string, c1, c2, ea float64) (tts.ShiftMethod, error) {
	switch strings.ToLower(name) {
	case "wlf":
		return tts.WLF{C1: c1, C2: c2}, nil
	case "arrhenius":
		return tts.Arrhenius{Ea: ea}, nil
	default:
		return nil, fmt.Errorf("invalid shift method: %s (valid: %v)", name, ValidMethods)
	}
}

// FitOptions returns the solver settings.
func (c *Config) FitOptions() tts.FitOptions {
	return tts.FitOptions{MaxIterations: c.Fit.MaxIterations, Tolerance: c.Fit.Tolerance}
}

// GetSessionTTL returns the session TTL as a duration.
func (c *Config) GetSessionTTL() time.Duration {
	d, err := time.ParseDuration(c.Server.SessionTTL)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q (valid: debug, info, warn, error)", s)
	}
	return level, nil
}
