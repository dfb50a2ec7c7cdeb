// SPDX-License-Identifier: MPL-2.0

// Package config loads runbox settings from the user's configuration
// file and environment, with sensible defaults for everything.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "runbox"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "toml"
	// envPrefix namespaces environment overrides, e.g. RUNBOX_ROOT_DIR.
	envPrefix = "RUNBOX"
)

// Config holds every tunable runbox setting.
type Config struct {
	// RootDir is the process-wide runbox directory holding the source
	// cache and the alias store
	RootDir string `mapstructure:"root_dir"`
	// DefaultExecutor is used when a run does not name one
	DefaultExecutor string `mapstructure:"default_executor"`
	// GracePeriodSeconds bounds graceful termination on cancel/timeout
	GracePeriodSeconds int `mapstructure:"grace_period_seconds"`
	// DefaultTimeoutSeconds bounds runs that set no timeout, zero means
	// unlimited
	DefaultTimeoutSeconds int `mapstructure:"default_timeout_seconds"`
	// DepTool generates a Python dependency file when none exists
	DepTool string `mapstructure:"dep_tool"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		RootDir:            defaultRootDir(),
		DefaultExecutor:    "docker",
		GracePeriodSeconds: 10,
		DepTool:            "pipreqs",
	}
}

// CacheDir returns the source cache directory under the runbox root.
func (c *Config) CacheDir() string {
	return filepath.Join(c.RootDir, "cache")
}

// ConfigDir returns the runbox configuration directory. It honors
// $XDG_CONFIG_HOME and falls back to ~/.config.
func ConfigDir() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", AppName), nil
}

// Load reads settings from the default configuration directory.
func Load() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	return LoadFrom(dir)
}

// LoadFrom reads settings from the given directory. A missing config
// file is not an error; defaults and environment overrides still apply.
func LoadFrom(dir string) (*Config, error) {
	v := newViper()
	v.SetConfigName(ConfigFileName)
	v.AddConfigPath(dir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return unmarshal(v)
}

// LoadFile reads settings from an explicit config file path. Unlike
// LoadFrom, a missing file is an error here: the user asked for it.
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("root_dir", defaults.RootDir)
	v.SetDefault("default_executor", defaults.DefaultExecutor)
	v.SetDefault("grace_period_seconds", defaults.GracePeriodSeconds)
	v.SetDefault("default_timeout_seconds", defaults.DefaultTimeoutSeconds)
	v.SetDefault("dep_tool", defaults.DepTool)

	v.SetConfigType(ConfigFileExt)
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

func defaultRootDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "." + AppName
	}
	return filepath.Join(home, "."+AppName)
}
