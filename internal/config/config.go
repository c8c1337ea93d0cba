package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v2"
)

// EnvPrefix prefixes every environment variable the application reads.
const EnvPrefix = "STUNTING_"

// Config holds the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	Model     ModelConfig     `yaml:"model" envPrefix:"MODEL_"`
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
	Telemetry TelemetryConfig `yaml:"telemetry" envPrefix:"TELEMETRY_"`

	// Version is set at build time, not from configuration sources
	Version string `yaml:"-"`
}

// ServerConfig configures the HTTP server and the desktop window
type ServerConfig struct {
	Port         int           `yaml:"port" env:"PORT"`
	Headless     bool          `yaml:"headless" env:"HEADLESS"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
}

// ModelConfig locates the weight file
type ModelConfig struct {
	Path      string `yaml:"path" env:"PATH"`
	CacheSize int    `yaml:"cache_size" env:"CACHE_SIZE"`
}

// LogConfig configures the zap logger and optional log file rotation
type LogConfig struct {
	Level      string `yaml:"level" env:"LEVEL"`
	File       string `yaml:"file" env:"FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb" env:"MAX_SIZE_MB"`
	MaxBackups int    `yaml:"max_backups" env:"MAX_BACKUPS"`
	MaxAgeDays int    `yaml:"max_age_days" env:"MAX_AGE_DAYS"`
}

// TelemetryConfig enables OTLP trace export when Endpoint is set
type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint" env:"ENDPOINT"`
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
}

// Default returns the configuration used when no file is present
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Model: ModelConfig{
			Path:      "model/stunted_model.npz",
			CacheSize: 256,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "stunting-predictor",
		},
		Version: "dev",
	}
}

// Load reads the YAML file at path over the defaults, then applies
// STUNTING_* environment variables. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// defaults only
		case err != nil:
			return cfg, fmt.Errorf("failed to open config: %w", err)
		default:
			defer f.Close()
			if err := yaml.NewDecoder(f).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
				return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("failed to parse environment: %w", err)
	}

	return cfg, nil
}

// Overrides captures values supplied on the command line. Nil fields are left alone.
type Overrides struct {
	Port      *int
	ModelPath *string
	Headless  *bool
}

// ApplyOverrides updates c with any non-nil override
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Port != nil {
		c.Server.Port = *o.Port
	}
	if o.ModelPath != nil {
		c.Model.Path = *o.ModelPath
	}
	if o.Headless != nil {
		c.Server.Headless = *o.Headless
	}
}

// Validate reports the first invalid setting
func (c Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Model.Path == "" {
		return errors.New("model.path is required")
	}
	if c.Model.CacheSize < 0 {
		return fmt.Errorf("model.cache_size must not be negative, got %d", c.Model.CacheSize)
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		return errors.New("server timeouts must not be negative")
	}
	return nil
}
