package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Port int `yaml:"port" envconfig:"SERVER_PORT"`
}

type DatabaseConfig struct {
	// пустой DSN - запуск на хранилище в памяти (локальная разработка, тесты)
	DSN string `yaml:"database_url" envconfig:"DATABASE_URL"`
}

type AuthConfig struct {
	JWTSecret       string `yaml:"jwt_secret" envconfig:"JWT_SECRET"`
	JWTIssuer       string `yaml:"jwt_issuer" envconfig:"JWT_ISSUER"`
	TokenTTLSeconds int    `yaml:"token_ttl_seconds" envconfig:"TOKEN_TTL_SECONDS"`
	BcryptCost      int    `yaml:"bcrypt_cost" envconfig:"BCRYPT_COST"`
}

type AccrualConfig struct {
	Period     time.Duration `yaml:"accrual_period" envconfig:"ACCRUAL_PERIOD"`
	StartDelay time.Duration `yaml:"accrual_start_delay" envconfig:"ACCRUAL_START_DELAY"`
	Rate       string        `yaml:"accrual_rate" envconfig:"ACCRUAL_RATE"`
	CapFactor  string        `yaml:"accrual_cap_factor" envconfig:"ACCRUAL_CAP_FACTOR"`
}

type ClientConfig struct {
	InitialBalance  string `yaml:"initial_balance" envconfig:"INITIAL_BALANCE"`
	PageSizeDefault int    `yaml:"page_size_default" envconfig:"PAGE_SIZE_DEFAULT"`
	PageSizeMax     int    `yaml:"page_size_max" envconfig:"PAGE_SIZE_MAX"`
}

type Config struct {
	ServerConfig   `yaml:",inline"`
	DatabaseConfig `yaml:",inline"`
	AuthConfig     `yaml:",inline"`
	AccrualConfig  `yaml:",inline"`
	ClientConfig   `yaml:",inline"`
}

// Load читает config/config.yaml (если есть) и накрывает его переменными
// окружения. Окружение всегда сильнее файла.
func Load() (*Config, error) {
	cfg := &Config{}

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/config.yaml"
	}
	if f, err := os.Open(path); err == nil {
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("read env config: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = "banking"
	}
	if cfg.TokenTTLSeconds == 0 {
		cfg.TokenTTLSeconds = 3600
	}
	if cfg.Period == 0 {
		cfg.Period = 24 * time.Hour
	}
	if cfg.StartDelay == 0 {
		cfg.StartDelay = time.Minute
	}
	if cfg.Rate == "" {
		cfg.Rate = "1.05"
	}
	if cfg.CapFactor == "" {
		cfg.CapFactor = "2.07"
	}
	if cfg.InitialBalance == "" {
		cfg.InitialBalance = "0.00"
	}
	if cfg.PageSizeDefault == 0 {
		cfg.PageSizeDefault = 20
	}
	if cfg.PageSizeMax == 0 {
		cfg.PageSizeMax = 100
	}
	return cfg, nil
}
