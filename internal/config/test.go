package config

import "github.com/caarlos0/env/v11"

// TestConfig gates integration tests. Tests skip when the DSN is absent.
type TestConfig struct {
	TestPostgresDSN string `env:"TEST_POSTGRES_DSN,required,notEmpty"`
	TestNATSURL     string `env:"TEST_NATS_URL"`
}

func LoadTest() (TestConfig, error) {
	var cfg TestConfig
	err := env.Parse(&cfg)
	return cfg, err
}
