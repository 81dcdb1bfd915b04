package config

import "github.com/caarlos0/env/v11"

type ServerConfig struct {
	PostgresDSN string `env:"POSTGRES_DSN,required,notEmpty"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`

	AdminAPIKey      string `env:"ADMIN_API_KEY"`
	RequestTimeoutMS int    `env:"REQUEST_TIMEOUT_MS" envDefault:"5000"`
	MCPEnabled       bool   `env:"MCP_ENABLED" envDefault:"true"`

	// Origins allowed to read the public spectator routes from a browser.
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}
