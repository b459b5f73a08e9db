package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
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

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type PaymentConfig struct {
	SSLCommerz struct {
		StoreID       string `yaml:"store_id"`
		StorePassword string `yaml:"store_password"`
		Live          bool   `yaml:"live"`
	} `yaml:"sslcommerz"`
	// InitRateLimit caps checkout initiations per user per window.
	InitRateLimit  int           `yaml:"init_rate_limit"`
	InitRateWindow time.Duration `yaml:"init_rate_window"`
}

type EmailConfig struct {
	PostmarkServerToken  string `yaml:"postmark_server_token"`
	PostmarkAccountToken string `yaml:"postmark_account_token"`
	From                 string `yaml:"from"`
}

type SchedulerConfig struct {
	ExpiryInterval       time.Duration `yaml:"expiry_interval"`
	NotificationInterval time.Duration `yaml:"notification_interval"`
	ReconcileInterval    time.Duration `yaml:"reconcile_interval"`
	ReminderWindowDays   int           `yaml:"reminder_window_days"`
	PendingStaleAfter    time.Duration `yaml:"pending_stale_after"`
}

type FrontendConfig struct {
	BaseURL string `yaml:"base_url"` // where payment callbacks redirect the browser
	APIBase string `yaml:"api_base"` // public base of this service, for gateway callback URLs
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Payment   PaymentConfig   `yaml:"payment"`
	Email     EmailConfig     `yaml:"email"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Frontend  FrontendConfig  `yaml:"frontend"`
	Language  string          `yaml:"language"` // bn|en, default message locale

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()

	b, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}
	if !dev && (cfg.Payment.SSLCommerz.StoreID == "" || cfg.Payment.SSLCommerz.StorePassword == "") {
		return nil, errors.New("payment.sslcommerz credentials are required outside dev mode")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
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
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = time.Hour
	}
	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = 24 * time.Hour
	}
	if cfg.Payment.InitRateLimit <= 0 {
		cfg.Payment.InitRateLimit = 5
	}
	if cfg.Payment.InitRateWindow <= 0 {
		cfg.Payment.InitRateWindow = time.Minute
	}
	if cfg.Scheduler.ExpiryInterval <= 0 {
		cfg.Scheduler.ExpiryInterval = time.Hour
	}
	if cfg.Scheduler.NotificationInterval <= 0 {
		cfg.Scheduler.NotificationInterval = 30 * time.Second
	}
	if cfg.Scheduler.ReconcileInterval <= 0 {
		cfg.Scheduler.ReconcileInterval = 5 * time.Minute
	}
	if cfg.Scheduler.ReminderWindowDays <= 0 {
		cfg.Scheduler.ReminderWindowDays = 3
	}
	if cfg.Scheduler.PendingStaleAfter <= 0 {
		cfg.Scheduler.PendingStaleAfter = 30 * time.Minute
	}
	if cfg.Frontend.BaseURL == "" {
		cfg.Frontend.BaseURL = "http://localhost:3000"
	}
	if cfg.Frontend.APIBase == "" {
		cfg.Frontend.APIBase = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	if cfg.Language == "" {
		cfg.Language = "bn"
	}
}
