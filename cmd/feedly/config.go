package main

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

	"feedlykit/internal/pkg/config"
	"feedlykit/pkg/cloudapi"
)

// fileConfig is the YAML config file. Empty fields leave the environment value in place.
type fileConfig struct {
	Target      string `yaml:"target"`
	BaseURL     string `yaml:"base_url"`
	AccessToken string `yaml:"access_token"`
	Timeout     string `yaml:"timeout"`
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "feedly", "config.yaml")
	}
	return filepath.Join(home, ".config", "feedly", "config.yaml")
}

// readFileConfig reads path. A missing file is only an error when the path was given explicitly.
func readFileConfig(path string, explicit bool) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &fc, nil
}

// apply overrides cfg with the non-empty fields of fc.
func (fc *fileConfig) apply(cfg *cloudapi.Config) error {
	if fc.Target != "" {
		cfg.Target = cloudapi.Target(strings.ToLower(fc.Target))
	}
	if fc.BaseURL != "" {
		cfg.BaseURL = fc.BaseURL
	}
	if fc.AccessToken != "" {
		cfg.AccessToken = fc.AccessToken
	}
	if fc.Timeout != "" {
		d, err := time.ParseDuration(fc.Timeout)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = d
	}
	return nil
}

// loadConfig merges the environment and the config file, the file taking precedence.
func loadConfig(path string, logger *slog.Logger, metrics *config.ConfigMetrics) (cloudapi.Config, error) {
	cfg, err := cloudapi.LoadConfigFromEnv(logger, metrics)
	if err != nil {
		return cloudapi.Config{}, err
	}

	explicit := path != ""
	if !explicit {
		path = defaultConfigPath()
	}
	fc, err := readFileConfig(path, explicit)
	if err != nil {
		return cloudapi.Config{}, err
	}
	if fc == nil {
		return cfg, nil
	}

	if err := fc.apply(&cfg); err != nil {
		return cloudapi.Config{}, fmt.Errorf("config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cloudapi.Config{}, fmt.Errorf("config file %s: %w", path, err)
	}
	logger.Debug("config file loaded", slog.String("path", path))
	return cfg, nil
}
