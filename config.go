package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type StorageConfig struct {
	// Driver is one of memory, file, postgres or mysql.
	Driver string `yaml:"driver" default:"file"`
	Path   string `yaml:"path" default:"data/ecomhub.json"`
	DSN    string `yaml:"dsn"`
}

type StripeConfig struct {
	SecretKey      string `yaml:"secret_key"`
	PublishableKey string `yaml:"publishable_key"`
	WebhookSecret  string `yaml:"webhook_secret"`
	Currency       string `yaml:"currency" default:"usd"`
}

type Config struct {
	ListenAddr string        `yaml:"listen_addr" default:":8080"`
	Namespace  string        `yaml:"namespace" default:"ecomhubDB"`
	Storage    StorageConfig `yaml:"storage"`
	JWTSecret  string        `yaml:"jwt_secret" default:"testKey"`
	JWTTTL     time.Duration `yaml:"jwt_ttl" default:"60m"`
	BcryptCost int           `yaml:"bcrypt_cost" default:"10"`
	Stripe     StripeConfig  `yaml:"stripe"`
	SeedFile   string        `yaml:"seed_file"`
}

// LoadConfig reads the YAML file at path (if any), fills unset fields from
// their defaults and finally applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}

	cfg.ListenAddr = getEnv("ECOMHUB_ADDR", cfg.ListenAddr)
	cfg.Namespace = getEnv("ECOMHUB_NAMESPACE", cfg.Namespace)
	cfg.Storage.Driver = getEnv("ECOMHUB_STORAGE", cfg.Storage.Driver)
	cfg.Storage.Path = getEnv("ECOMHUB_STORAGE_PATH", cfg.Storage.Path)
	cfg.Storage.DSN = getEnv("ECOMHUB_DSN", cfg.Storage.DSN)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.Stripe.SecretKey = getEnv("STRIPE_SECRET_KEY", cfg.Stripe.SecretKey)
	cfg.Stripe.PublishableKey = getEnv("STRIPE_PUBLISHABLE_KEY", cfg.Stripe.PublishableKey)
	cfg.Stripe.WebhookSecret = getEnv("STRIPE_WEBHOOK_SECRET", cfg.Stripe.WebhookSecret)
	cfg.SeedFile = getEnv("SEED_FILE", cfg.SeedFile)
	if v := os.Getenv("BCRYPT_COST"); v != "" {
		cost, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("BCRYPT_COST: %w", err)
		}
		cfg.BcryptCost = cost
	}
	return cfg, nil
}

// OpenMedium builds the storage medium named by the config.
func (c *Config) OpenMedium() (Medium, error) {
	switch c.Storage.Driver {
	case "memory":
		return NewMemoryMedium(), nil
	case "file":
		return OpenFileMedium(c.Storage.Path)
	case "postgres", "mysql":
		m, err := OpenSQLMedium(c.Storage.Driver, c.Storage.DSN)
		if err != nil {
			return nil, err
		}
		if err := m.Init(); err != nil {
			m.Close()
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
