// Package config handles application configuration from an optional ini file
// and environment variables.
package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"
)

// Section is the ini section holding the application settings.
const Section = "kmanga"

// Config holds the application configuration.
type Config struct {
	DatabasePath     string
	LogLevel         string
	TelegramBotToken string
	RefreshInterval  time.Duration
	IngestInterval   time.Duration
	DeliveryInterval time.Duration
	// SendRate is the maximum number of notifications sent per second.
	SendRate     float64
	AllowedUsers []int64
}

// setting maps an ini key to its environment variable and default.
type setting struct {
	key, env, def string
}

var settings = []setting{
	{"database_path", "DATABASE_PATH", "./data/kmanga.db"},
	{"log_level", "LOG_LEVEL", "info"},
	{"telegram_bot_token", "TELEGRAM_BOT_TOKEN", ""},
	{"refresh_interval", "REFRESH_INTERVAL", "15m"},
	{"ingest_interval", "INGEST_INTERVAL", "30m"},
	{"delivery_interval", "DELIVERY_INTERVAL", "1m"},
	{"send_rate", "SEND_RATE", "20"},
	{"allowed_users", "ALLOWED_USERS", ""},
}

// Load reads the ini file at path, if path is not empty, and then applies
// environment variables on top. Unset values fall back to defaults.
func Load(path string) (*Config, error) {
	raw := make(map[string]string, len(settings))
	for _, s := range settings {
		raw[s.key] = s.def
	}

	if path != "" {
		file, err := ini.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		sec := file.Section(Section)
		for _, s := range settings {
			if sec.HasKey(s.key) {
				raw[s.key] = sec.Key(s.key).String()
			}
		}
	}

	for _, s := range settings {
		if v := os.Getenv(s.env); v != "" {
			raw[s.key] = v
		}
	}

	return parse(raw)
}

func parse(raw map[string]string) (*Config, error) {
	cfg := &Config{
		DatabasePath:     raw["database_path"],
		LogLevel:         raw["log_level"],
		TelegramBotToken: raw["telegram_bot_token"],
	}

	var err error
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"refresh_interval", &cfg.RefreshInterval},
		{"ingest_interval", &cfg.IngestInterval},
		{"delivery_interval", &cfg.DeliveryInterval},
	}
	for _, d := range durations {
		if *d.dst, err = time.ParseDuration(raw[d.key]); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		if *d.dst < 0 {
			return nil, fmt.Errorf("invalid %s: must not be negative", d.key)
		}
	}

	cfg.SendRate, err = strconv.ParseFloat(raw["send_rate"], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid send_rate: %w", err)
	}
	if cfg.SendRate <= 0 {
		return nil, fmt.Errorf("invalid send_rate: must be positive")
	}

	for _, s := range strings.Split(raw["allowed_users"], ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		uid, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user ID %q in allowed_users: %w", s, err)
		}
		cfg.AllowedUsers = append(cfg.AllowedUsers, uid)
	}

	return cfg, nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	return len(c.AllowedUsers) == 0 || slices.Contains(c.AllowedUsers, userID)
}
