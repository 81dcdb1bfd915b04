package config

import "github.com/caarlos0/env/v11"

type WatchConfig struct {
	BaseURL string `env:"WATCH_BASE_URL" envDefault:"ws://localhost:8080"`
	Kind    string `env:"WATCH_KIND" envDefault:"match"`
	ID      string `env:"WATCH_ID"`
}

func LoadWatch() (WatchConfig, error) {
	var cfg WatchConfig
	err := env.Parse(&cfg)
	return cfg, err
}
