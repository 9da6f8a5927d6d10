// Package cli implements sawactl, the terminal companion of the admin console.
package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the sawactl configuration.
type Config struct {
	API        string `mapstructure:"api"`
	Gateway    string `mapstructure:"gateway"`
	StateDir   string `mapstructure:"state_dir"`
	LogLevel   string `mapstructure:"log_level"`
	CookieDays int    `mapstructure:"cookie_days"`
	Timeout    string `mapstructure:"timeout"`
}

// LoadConfig reads ~/.sawactl/config.yaml (or configPath) and SAWACTL_*
// environment variables.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("api", "")
	v.SetDefault("gateway", "http://localhost:8080")
	v.SetDefault("state_dir", "~/.sawactl")
	v.SetDefault("log_level", "warn")
	v.SetDefault("cookie_days", 7)
	v.SetDefault("timeout", "10s")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(filepath.Join(home, ".sawactl"))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("SAWACTL")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if strings.HasPrefix(cfg.StateDir, "~") {
		home, _ := os.UserHomeDir()
		cfg.StateDir = filepath.Join(home, cfg.StateDir[1:])
	}
	return &cfg, nil
}

// Validate checks what every command needs.
func (c *Config) Validate() error {
	if c.API == "" {
		return errors.New("backend API URL is not set (api in config.yaml or SAWACTL_API)")
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return errors.New("timeout must be a duration such as 10s")
	}
	return nil
}

func (c *Config) timeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}
