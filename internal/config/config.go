package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/harriteja/squeezejpg/compress"
	"github.com/harriteja/squeezejpg/internal/logging"
	"github.com/harriteja/squeezejpg/parallel"
)

// EnvPrefix is the prefix of environment variables overriding config keys,
// e.g. SQUEEZEJPG_OUTPUT_DIR for output.dir
const EnvPrefix = "SQUEEZEJPG"

// Config represents the complete squeezejpg CLI configuration
type Config struct {
	// Quality is the target JPEG quality; out of range values are clamped
	Quality int `mapstructure:"quality"`
	// Workers is the number of compression workers (minimum 1)
	Workers int `mapstructure:"workers"`
	// Ordered writes files in input order instead of completion order
	Ordered bool `mapstructure:"ordered"`

	Input   InputConfig   `mapstructure:"input"`
	Output  OutputConfig  `mapstructure:"output"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// InputConfig controls which files are picked up
type InputConfig struct {
	// Extensions lists accepted file extensions, case-insensitive, with the dot
	Extensions []string `mapstructure:"extensions"`
	// ReadConcurrency bounds concurrent file reads and writes
	ReadConcurrency int `mapstructure:"read_concurrency"`
}

// OutputConfig controls where compressed files go
type OutputConfig struct {
	// Dir is created if it does not exist
	Dir string `mapstructure:"dir"`
	// Prefix is prepended to every output file name
	Prefix string `mapstructure:"prefix"`
}

// LogConfig controls logging
type LogConfig struct {
	// Level is one of DEBUG, INFO, WARN, ERROR
	Level string `mapstructure:"level"`
	// Dir holds the log file; empty logs to stderr
	Dir string `mapstructure:"dir"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	// Addr serves /metrics during the run when non-empty, e.g. ":9090"
	Addr string `mapstructure:"addr"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Quality: compress.DefaultQuality,
		Workers: parallel.DefaultNumWorkers,
		Ordered: false,
		Input: InputConfig{
			Extensions:      []string{".jpg", ".jpeg"},
			ReadConcurrency: 8,
		},
		Output: OutputConfig{
			Dir:    "compressed",
			Prefix: "",
		},
		Log: LogConfig{
			Level: logging.LevelInfo,
			Dir:   "",
		},
	}
}

// SetDefaults registers default values with v so they apply even without a config file
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("quality", defaults.Quality)
	v.SetDefault("workers", defaults.Workers)
	v.SetDefault("ordered", defaults.Ordered)

	v.SetDefault("input.extensions", defaults.Input.Extensions)
	v.SetDefault("input.read_concurrency", defaults.Input.ReadConcurrency)

	v.SetDefault("output.dir", defaults.Output.Dir)
	v.SetDefault("output.prefix", defaults.Output.Prefix)

	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.dir", defaults.Log.Dir)

	v.SetDefault("metrics.addr", defaults.Metrics.Addr)
}

// Init prepares v: defaults, environment overrides and an optional config file.
// A missing config file is not an error when path is empty.
func Init(v *viper.Viper, path string) error {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	// Nested keys map to underscores, e.g. SQUEEZEJPG_LOG_LEVEL for log.level
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName("squeezejpg")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/squeezejpg")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

// Load unmarshals v into a Config and validates it
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.Quality = compress.ClampQuality(cfg.Quality)
	cfg.Input.Extensions = normalizeExtensions(cfg.Input.Extensions)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// AcceptsExtension reports whether ext (with the dot) is in the input list
func (c *Config) AcceptsExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, e := range c.Input.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}
