package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type CleanupConfig struct {
	Interval   time.Duration `env:"CLEANUP_INTERVAL" envDefault:"30s"`
	BatchSize  int           `env:"CLEANUP_BATCH" envDefault:"50"`
	Lease      time.Duration `env:"CLEANUP_LEASE" envDefault:"30s"`
	Grace      time.Duration `env:"CLEANUP_GRACE" envDefault:"5s"`
	MaxBackoff time.Duration `env:"CLEANUP_MAX_BACKOFF" envDefault:"5m"`
	Listen     bool          `env:"CLEANUP_LISTEN" envDefault:"false"`
	Channel    string        `env:"CLEANUP_CHANNEL" envDefault:"realtime_cleanup"`
}

func LoadCleanup() (CleanupConfig, error) {
	var cfg CleanupConfig
	err := env.Parse(&cfg)
	return cfg, err
}
