// Package config loads application configuration with viper.
//
// Values come from three sources, in increasing priority:
//  1. defaults set in this package
//  2. a config.yaml file next to the binary or under ./config
//  3. AUTOGEN_* environment variables (AUTOGEN_SERVER_PORT, ...)
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Executor ExecutorConfig `mapstructure:"executor"`
	Docker   DockerConfig   `mapstructure:"docker"`
	Venv     VenvConfig     `mapstructure:"venv"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

type ServerConfig struct {
	Port   int    `mapstructure:"port"`
	DBPath string `mapstructure:"db_path"`
}

type ExecutorConfig struct {
	Backend    string `mapstructure:"backend"` // "local" or "docker"
	WorkDir    string `mapstructure:"work_dir"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
	GraceSec   int    `mapstructure:"grace_sec"`
}

type DockerConfig struct {
	Image      string `mapstructure:"image"`
	AutoRemove bool   `mapstructure:"auto_remove"`
	StopOnExit bool   `mapstructure:"stop_on_exit"`
	BindDir    string `mapstructure:"bind_dir"`
}

// VenvConfig points the local backend at a Python virtual environment.
// Both fields empty means the system interpreter is used.
type VenvConfig struct {
	Dir         string `mapstructure:"dir"`
	Interpreter string `mapstructure:"interpreter"`
}

// AuthConfig holds the credentials backing the token exchange. Leaving
// both fields empty disables authentication entirely and the API runs
// open; setting only one of them is a validation error.
type AuthConfig struct {
	JWTSecret  string `mapstructure:"jwt_secret"`
	APIKeyHash string `mapstructure:"api_key_hash"`
}

// Enabled reports whether authentication is configured.
func (a AuthConfig) Enabled() bool {
	return a.JWTSecret != "" && a.APIKeyHash != ""
}

// New loads and validates the application configuration.
func New() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("AUTOGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.db_path", "data/autogen.db")

	v.SetDefault("executor.backend", "docker")
	v.SetDefault("executor.work_dir", "")
	v.SetDefault("executor.timeout_sec", 60)
	v.SetDefault("executor.grace_sec", 2)

	v.SetDefault("docker.image", "python:3-slim")
	v.SetDefault("docker.auto_remove", true)
	v.SetDefault("docker.stop_on_exit", true)
	v.SetDefault("docker.bind_dir", "")

	v.SetDefault("venv.dir", "")
	v.SetDefault("venv.interpreter", "")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.api_key_hash", "")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
		// No config file is fine, defaults and env vars apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Executor.Backend != "local" && c.Executor.Backend != "docker" {
		return fmt.Errorf("invalid executor.backend %q, must be 'local' or 'docker'", c.Executor.Backend)
	}
	if c.Executor.TimeoutSec <= 0 {
		return fmt.Errorf("executor.timeout_sec must be positive, got %d", c.Executor.TimeoutSec)
	}
	if c.Executor.GraceSec < 0 {
		return fmt.Errorf("executor.grace_sec must not be negative, got %d", c.Executor.GraceSec)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Auth.Enabled() {
		return nil
	}
	// Auth is all-or-nothing. Both fields empty runs the API open; one
	// without the other is a misconfiguration.
	if c.Auth.JWTSecret != "" {
		return fmt.Errorf("auth.jwt_secret is set but auth.api_key_hash is empty (set AUTOGEN_AUTH_API_KEY_HASH)")
	}
	if c.Auth.APIKeyHash != "" {
		return fmt.Errorf("auth.api_key_hash is set but auth.jwt_secret is empty (set AUTOGEN_AUTH_JWT_SECRET)")
	}
	return nil
}

// Timeout returns the per-block execution timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Executor.TimeoutSec) * time.Second
}

// Grace returns the termination grace period as a duration.
func (c *Config) Grace() time.Duration {
	return time.Duration(c.Executor.GraceSec) * time.Second
}
