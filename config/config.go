// Package config loads the engine's YAML configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Shift    ShiftConfig    `yaml:"shift"`
	Audience AudienceConfig `yaml:"audience"`
	Push     PushConfig     `yaml:"push"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the SQLite database location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ShiftConfig describes the working day used for lateness computation.
type ShiftConfig struct {
	// Start is the "15:04" wall-clock start of the shift.
	Start        string `yaml:"start"`
	GraceMinutes int    `yaml:"grace_minutes"`
}

// AudienceConfig names the notification fan-out recipients.
type AudienceConfig struct {
	ManagerID   string   `yaml:"manager_id"`
	HRPool      []string `yaml:"hr_pool"`
	AdminPool   []string `yaml:"admin_pool"`
	ExecutiveID string   `yaml:"executive_id"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Default returns a runnable configuration for local development.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8080, RateLimitPerSec: 10, CacheTTLSeconds: 300},
		Database: DatabaseConfig{Path: "./attendance.db"},
		Shift:    ShiftConfig{Start: "09:00", GraceMinutes: 15},
		Push:     PushConfig{TTL: 60},
	}
}

// Load reads the configuration from the given path and fills defaults for
// anything left unset.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := Default()
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}
	if cfg.Shift.Start == "" {
		cfg.Shift.Start = "09:00"
	}
	if cfg.Shift.GraceMinutes <= 0 {
		cfg.Shift.GraceMinutes = 15
	}
	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 60
	}

	return cfg, nil
}
