// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"bookstore-payments/internal/domain"
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
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type BotConfig struct {
	Token    string  `yaml:"token"`
	Username string  `yaml:"username"`
	Workers  int     `yaml:"workers"` // polling workers
	AdminIDs []int64 `yaml:"admin_ids"`
	// SharedSecret authenticates inbound webhook/gateway calls as the bot
	// principal. Required.
	SharedSecret string `yaml:"shared_secret"`
}

type PaymentConfig struct {
	Currency string `yaml:"currency"` // single ISO code per deployment
	// ReferencePrefix tags every transaction reference shown to users.
	ReferencePrefix string `yaml:"reference_prefix"`
	// Instructions is the out-of-band payment text sent to buyers (bank
	// account, wallet number, ...).
	Instructions string `yaml:"instructions"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type StorageConfig struct {
	ReceiptDir string `yaml:"receipt_dir"`
	// SigningKey is the HMAC key for signed receipt URLs.
	SigningKey string `yaml:"signing_key"`
	BaseURL    string `yaml:"base_url"`
}

type AuthConfig struct {
	// JWTSecret verifies session tokens minted by the auth provider.
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Bot      BotConfig      `yaml:"bot"`
	Payment  PaymentConfig  `yaml:"payment"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Storage  StorageConfig  `yaml:"storage"`
	Auth     AuthConfig     `yaml:"auth"`

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
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = "ETB"
	}
	if cfg.Payment.ReferencePrefix == "" {
		cfg.Payment.ReferencePrefix = "BKS-"
	}
	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = 30 * time.Minute
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("%w: database.url", domain.ErrConfiguration)
	}
	if cfg.Redis.URL == "" {
		return nil, fmt.Errorf("%w: redis.url", domain.ErrConfiguration)
	}
	if cfg.Bot.SharedSecret == "" {
		return nil, fmt.Errorf("%w: bot.shared_secret", domain.ErrConfiguration)
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("%w: auth.jwt_secret", domain.ErrConfiguration)
	}
	if cfg.Storage.SigningKey == "" {
		return nil, fmt.Errorf("%w: storage.signing_key", domain.ErrConfiguration)
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
