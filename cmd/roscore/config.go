package main

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the on-disk config file shape; command-line flags
// always take precedence over a value set here.
type fileConfig struct {
	Host         string   `yaml:"host"`
	Port         int      `yaml:"port"`
	LogLevel     string   `yaml:"log_level"`
	MetricsAddr  string   `yaml:"metrics_addr"`
	Params       []string `yaml:"params"`
	MaxOutbound  int      `yaml:"max_outbound_concurrency"`
	OutboundRate float64  `yaml:"outbound_rate_per_second"`
}

func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "reading config file %s", path)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing config file %s", path)
	}
	return cfg, nil
}

// mergeString returns override when the flag was explicitly set (non-zero
// value), otherwise falls back to the file config's value.
func mergeString(flagValue, fileValue, fallback string) string {
	if flagValue != "" {
		return flagValue
	}
	if fileValue != "" {
		return fileValue
	}
	return fallback
}

func mergeInt(flagValue, fileValue, fallback int) int {
	if flagValue != 0 {
		return flagValue
	}
	if fileValue != 0 {
		return fileValue
	}
	return fallback
}

func mergeFloat(flagValue, fileValue, fallback float64) float64 {
	if flagValue != 0 {
		return flagValue
	}
	if fileValue != 0 {
		return fileValue
	}
	return fallback
}
