// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type PaymentConfig struct {
	Gateway struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
		Sandbox bool   `yaml:"sandbox"`
	} `yaml:"gateway"`
	WebhookSecret   string        `yaml:"webhook_secret"`
	PollAttempts    int           `yaml:"poll_attempts"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	ReconcileEvery  time.Duration `yaml:"reconcile_every"`
	StaleAfter      time.Duration `yaml:"stale_after"`
	DiscountPercent int           `yaml:"discount_percent"`
}

type SessionConfig struct {
	TokenSecret string        `yaml:"token_secret"`
	TokenTTL    time.Duration `yaml:"token_ttl"`
	ExpirySweep time.Duration `yaml:"expiry_sweep"`
}

type GeneratorConfig struct {
	OpenAIKey     string `yaml:"openai_key"`
	GeminiKey     string `yaml:"gemini_key"`
	GeminiURL     string `yaml:"gemini_url"`
	DefaultModel  string `yaml:"default_model"`
	WorkerCount   int    `yaml:"worker_count"`
	EncryptionKey string `yaml:"encryption_key"` // AES key for captured input at rest
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Payment   PaymentConfig   `yaml:"payment"`
	Session   SessionConfig   `yaml:"session"`
	Generator GeneratorConfig `yaml:"generator"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Payment.PollAttempts <= 0 {
		cfg.Payment.PollAttempts = 5
	}
	if cfg.Payment.PollInterval <= 0 {
		cfg.Payment.PollInterval = time.Second
	}
	if cfg.Payment.ReconcileEvery <= 0 {
		cfg.Payment.ReconcileEvery = time.Minute
	}
	if cfg.Payment.StaleAfter <= 0 {
		cfg.Payment.StaleAfter = 10 * time.Minute
	}
	if cfg.Session.TokenTTL <= 0 {
		cfg.Session.TokenTTL = 15 * time.Minute
	}
	if cfg.Session.ExpirySweep <= 0 {
		cfg.Session.ExpirySweep = time.Minute
	}
	if cfg.Generator.DefaultModel == "" {
		cfg.Generator.DefaultModel = "gpt-4o-mini"
	}
	if cfg.Generator.WorkerCount <= 0 {
		cfg.Generator.WorkerCount = 4
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Payment.WebhookSecret == "" {
		return nil, errors.New("payment.webhook_secret is required")
	}
	if cfg.Session.TokenSecret == "" {
		return nil, errors.New("session.token_secret is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
