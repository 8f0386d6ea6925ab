// Package config loads service configuration from a YAML file with
// environment variable overrides. A missing config file is fine; defaults
// and environment variables are enough to run.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/north-identity/reconvalidator/internal/logger"
	"github.com/north-identity/reconvalidator/internal/profile"
	"github.com/north-identity/reconvalidator/internal/recon"
)

const envPrefix = "RECON"

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DirectoryConfig holds directory client settings. Tenant URL and OAuth
// credentials arrive per run request, not here.
type DirectoryConfig struct {
	UserPath string `mapstructure:"user_path"`
}

// ValidationConfig holds run defaults, overridable per request.
type ValidationConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	PageSize    int           `mapstructure:"page_size"`
	SampleRatio float64       `mapstructure:"sample_ratio"`
	ArtifactTTL time.Duration `mapstructure:"artifact_ttl"`
}

// Config is the root service configuration.
type Config struct {
	Server       ServerConfig     `mapstructure:"server"`
	Log          logger.Config    `mapstructure:"log"`
	ProfileStore profile.Config   `mapstructure:"profile_store"`
	Directory    DirectoryConfig  `mapstructure:"directory"`
	Validation   ValidationConfig `mapstructure:"validation"`
}

// Load reads configuration from path. An empty path searches the working
// directory and ./config for config.yaml and tolerates absence.
func Load(path string) (*Config, error) {
	// .env files are a convenience for local development; absence is fine.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key so environment overrides bind even without
// a config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 0)
	v.SetDefault("server.idle_timeout", 60*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.output_paths", []string{"stdout"})

	v.SetDefault("profile_store.baseurl", "")
	v.SetDefault("profile_store.apikey", "")
	v.SetDefault("profile_store.secret", "")
	v.SetDefault("profile_store.userkey", "")

	v.SetDefault("directory.user_path", "")

	v.SetDefault("validation.concurrency", recon.DefaultConcurrency)
	v.SetDefault("validation.page_size", recon.DefaultPageSize)
	v.SetDefault("validation.sample_ratio", recon.DefaultSampleRatio)
	v.SetDefault("validation.artifact_ttl", time.Hour)
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Validation.Concurrency < recon.MinConcurrency || c.Validation.Concurrency > recon.MaxConcurrency {
		return fmt.Errorf("validation.concurrency must be between %d and %d, got %d",
			recon.MinConcurrency, recon.MaxConcurrency, c.Validation.Concurrency)
	}
	if c.Validation.PageSize <= 0 {
		return fmt.Errorf("validation.page_size must be positive, got %d", c.Validation.PageSize)
	}
	if c.Validation.SampleRatio <= 0 || c.Validation.SampleRatio > 1 {
		return fmt.Errorf("validation.sample_ratio must be in (0, 1], got %g", c.Validation.SampleRatio)
	}
	if c.Validation.ArtifactTTL <= 0 {
		return fmt.Errorf("validation.artifact_ttl must be positive, got %s", c.Validation.ArtifactTTL)
	}
	return nil
}
