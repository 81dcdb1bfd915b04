package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	RealtimeBackendMemory = "memory"
	RealtimeBackendNATS   = "nats"
)

type RealtimeConfig struct {
	Backend        string        `env:"REALTIME_BACKEND" envDefault:"memory"`
	NATSURL        string        `env:"NATS_URL" envDefault:"nats://127.0.0.1:4222"`
	Bucket         string        `env:"REALTIME_BUCKET" envDefault:"live_projections"`
	TTL            time.Duration `env:"REALTIME_TTL" envDefault:"12h"`
	CASAttempts    int           `env:"REALTIME_CAS_ATTEMPTS" envDefault:"16"`
	RecentSalesMax int           `env:"RECENT_SALES_MAX" envDefault:"20"`
}

func LoadRealtime() (RealtimeConfig, error) {
	var cfg RealtimeConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	switch cfg.Backend {
	case RealtimeBackendMemory, RealtimeBackendNATS:
	default:
		return cfg, fmt.Errorf("unsupported REALTIME_BACKEND %q", cfg.Backend)
	}
	if cfg.CASAttempts < 1 {
		cfg.CASAttempts = 1
	}
	if cfg.RecentSalesMax < 1 {
		cfg.RecentSalesMax = 20
	}
	return cfg, nil
}
