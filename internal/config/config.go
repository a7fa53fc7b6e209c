package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds server settings loaded from an optional YAML file with
// environment overrides.
type Config struct {
	Port        int    `yaml:"port"`
	DBPath      string `yaml:"db_path"`
	StudioName  string `yaml:"studio_name"`
	StudioEmail string `yaml:"studio_email"`
	// ExportRowCap bounds comparison exports so a runaway RFQ cannot
	// produce an unbounded spreadsheet.
	ExportRowCap int `yaml:"export_row_cap"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:         9000,
		DBPath:       "studioops.db",
		StudioName:   "Studio",
		StudioEmail:  "procurement@example.com",
		ExportRowCap: 5000,
	}
}

// Load reads the YAML file at path (skipped when empty) and applies
// environment overrides on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	if v := os.Getenv("STUDIOOPS_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("STUDIOOPS_STUDIO_NAME"); v != "" {
		cfg.StudioName = v
	}
	if v := os.Getenv("STUDIOOPS_STUDIO_EMAIL"); v != "" {
		cfg.StudioEmail = v
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return cfg, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.ExportRowCap <= 0 {
		cfg.ExportRowCap = Default().ExportRowCap
	}
	return cfg, nil
}
