// Package config loads engine configuration from a YAML file, a .env file,
// and environment variable overrides, in that order of precedence (env wins).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Feed struct {
		URL string `yaml:"url"`
	} `yaml:"feed"`

	Engine struct {
		Symbols            []string `yaml:"symbols"`
		Granularities      []int    `yaml:"granularities"` // candle periods in seconds
		PrimaryGranularity int      `yaml:"primary_granularity"`
		HistorySize        int      `yaml:"history_size"`
		SignalEvery        int      `yaml:"signal_every"`
		ExtremaWindow      int      `yaml:"extrema_window"`
	} `yaml:"engine"`

	Alerts struct {
		MinConfidence float64 `yaml:"min_confidence"`
		ExpiryMinutes int     `yaml:"expiry_minutes"`
		HistorySize   int     `yaml:"history_size"`
		SweepCron     string  `yaml:"sweep_cron"`
	} `yaml:"alerts"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Disabled bool   `yaml:"disabled"`
	} `yaml:"redis"`

	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`

	HTTP struct {
		APIAddr     string `yaml:"api_addr"`
		MetricsAddr string `yaml:"metrics_addr"`
	} `yaml:"http"`

	Notify struct {
		WebhookURL       string `yaml:"webhook_url"`
		TelegramBotToken string `yaml:"telegram_bot_token"`
		TelegramChatID   string `yaml:"telegram_chat_id"`
	} `yaml:"notify"`
}

// Load reads config from a YAML file, loads .env if present, then applies
// environment variable overrides and defaults.
func Load(path string) (*Config, error) {
	// .env is optional; real env vars take precedence over it.
	_ = godotenv.Load()

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("FEED_URL"); v != "" {
		cfg.Feed.URL = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		cfg.Engine.Symbols = splitList(v)
	}
	if v := os.Getenv("GRANULARITIES"); v != "" {
		cfg.Engine.Granularities = parseInts(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.HTTP.APIAddr = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.HTTP.MetricsAddr = v
	}
	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		cfg.Notify.WebhookURL = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Notify.TelegramBotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Notify.TelegramChatID = v
	}

	// Defaults
	if cfg.Feed.URL == "" {
		cfg.Feed.URL = "ws://localhost:9001/ws"
	}
	if len(cfg.Engine.Symbols) == 0 {
		cfg.Engine.Symbols = []string{"XAUUSD"}
	}
	if len(cfg.Engine.Granularities) == 0 {
		cfg.Engine.Granularities = []int{60, 300, 900}
	}
	if cfg.Engine.PrimaryGranularity == 0 {
		cfg.Engine.PrimaryGranularity = cfg.Engine.Granularities[0]
	}
	if cfg.Engine.HistorySize == 0 {
		cfg.Engine.HistorySize = 900
	}
	if cfg.Engine.SignalEvery == 0 {
		cfg.Engine.SignalEvery = 10
	}
	if cfg.Engine.ExtremaWindow == 0 {
		cfg.Engine.ExtremaWindow = 5
	}
	if cfg.Alerts.MinConfidence == 0 {
		cfg.Alerts.MinConfidence = 0.8
	}
	if cfg.Alerts.ExpiryMinutes == 0 {
		cfg.Alerts.ExpiryMinutes = 5
	}
	if cfg.Alerts.HistorySize == 0 {
		cfg.Alerts.HistorySize = 100
	}
	if cfg.Alerts.SweepCron == "" {
		cfg.Alerts.SweepCron = "@every 30s"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/tickflow.db"
	}
	if cfg.HTTP.APIAddr == "" {
		cfg.HTTP.APIAddr = ":8080"
	}
	if cfg.HTTP.MetricsAddr == "" {
		cfg.HTTP.MetricsAddr = ":9090"
	}

	return cfg, nil
}

// Validate checks that all required fields are consistent.
func (c *Config) Validate() error {
	if c.Feed.URL == "" {
		return fmt.Errorf("feed.url is required")
	}
	if len(c.Engine.Symbols) == 0 {
		return fmt.Errorf("engine.symbols must not be empty")
	}
	for _, g := range c.Engine.Granularities {
		if g <= 0 {
			return fmt.Errorf("engine.granularities must be positive, got %d", g)
		}
	}
	primaryOK := false
	for _, g := range c.Engine.Granularities {
		if g == c.Engine.PrimaryGranularity {
			primaryOK = true
		}
	}
	if !primaryOK {
		return fmt.Errorf("engine.primary_granularity %d not in granularities", c.Engine.PrimaryGranularity)
	}
	if c.Engine.HistorySize <= 0 {
		return fmt.Errorf("engine.history_size must be positive")
	}
	if c.Alerts.MinConfidence < 0 || c.Alerts.MinConfidence > 1 {
		return fmt.Errorf("alerts.min_confidence must be in [0,1]")
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseInts(s string) []int {
	out := []int{}
	for _, p := range splitList(s) {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			continue
		}
		out = append(out, n)
	}
	return out
}
