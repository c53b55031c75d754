package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	cfg.applyDefaults()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Listen == "" {
		c.App.Listen = ":8080"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Oracle.BaseURL == "" {
		c.Oracle.BaseURL = "https://api.openai.com/v1"
	}
	if c.Oracle.TimeoutSeconds <= 0 {
		c.Oracle.TimeoutSeconds = 30
	}
	if c.Oracle.MaxRetries < 0 {
		c.Oracle.MaxRetries = 0
	}
	if c.Market.BaseURL == "" {
		c.Market.BaseURL = "https://api.bybit.com"
	}
	if c.Market.Category == "" {
		c.Market.Category = "linear"
	}
	if c.Market.TimeoutSeconds <= 0 {
		c.Market.TimeoutSeconds = 8
	}
	if c.Fallback.ProbeTimeoutSeconds <= 0 {
		c.Fallback.ProbeTimeoutSeconds = 5
	}
	if len(c.Fallback.Providers) == 0 {
		c.Fallback.Providers = []ProviderConfig{
			{ID: "binance", Priority: 1, Enabled: true},
			{ID: "okx", Priority: 2, Enabled: true},
			{ID: "gate", Priority: 3, Enabled: true},
		}
	}
	if c.Search.BaseURL == "" {
		c.Search.BaseURL = "https://api.tavily.com"
	}
	if c.Search.Depth == "" {
		c.Search.Depth = "basic"
	}
	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = 3
	}
	if c.Search.Topic == "" {
		c.Search.Topic = "finance"
	}
	if c.Search.TimeoutSeconds <= 0 {
		c.Search.TimeoutSeconds = 8
	}
	if c.Memory.DBPath == "" {
		c.Memory.DBPath = "data/sibyl.db"
	}
	if c.Memory.RecentLimit <= 0 {
		c.Memory.RecentLimit = 10
	}
	if c.Aggregator.Concurrency <= 0 {
		c.Aggregator.Concurrency = 4
	}
}

func validate(c *Config) error {
	if strings.TrimSpace(c.Oracle.Model) == "" {
		return fmt.Errorf("oracle.model is required")
	}
	seen := map[string]bool{}
	for _, p := range c.Fallback.Providers {
		id := strings.ToLower(strings.TrimSpace(p.ID))
		if id == "" {
			return fmt.Errorf("fallback provider id cannot be empty")
		}
		if seen[id] {
			return fmt.Errorf("duplicate fallback provider %q", id)
		}
		seen[id] = true
		if p.Priority <= 0 {
			return fmt.Errorf("fallback provider %q needs priority > 0", id)
		}
	}
	return nil
}
