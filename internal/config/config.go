// Package config loads the application configuration from a YAML file with
// environment variable overrides for deployment secrets.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/insurancepro/marketing/internal/mailer"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig      `yaml:"server"`
	Database DatabaseConfig    `yaml:"database"`
	Redis    RedisConfig       `yaml:"redis"`
	SMTP     mailer.SMTPConfig `yaml:"smtp"`
	Auth     AuthConfig        `yaml:"auth"`
	Token    TokenConfig       `yaml:"token"`
	Dispatch DispatchConfig    `yaml:"dispatch"`
}

// ServerConfig controls the HTTP listener and public URL generation.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	BaseURL        string   `yaml:"base_url"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig holds the Redis connection settings for the send queue.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AuthConfig controls admin sessions.
type AuthConfig struct {
	CookieName        string `yaml:"cookie_name"`
	SessionTTLMinutes int    `yaml:"session_ttl_minutes"`
}

// TokenConfig holds the unsubscribe token signing secret.
type TokenConfig struct {
	Secret string `yaml:"secret"`
}

// DispatchConfig tunes campaign sending.
type DispatchConfig struct {
	Workers                  int `yaml:"workers"`
	SchedulerIntervalSeconds int `yaml:"scheduler_interval_seconds"`
}

// Load reads and parses the YAML config file at path and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.SMTP.Host == "" {
		cfg.SMTP.Host = "smtp.gmail.com"
	}
	if cfg.SMTP.Port == 0 {
		cfg.SMTP.Port = 587
	}
	if cfg.Auth.CookieName == "" {
		cfg.Auth.CookieName = "admin_session"
	}
	if cfg.Auth.SessionTTLMinutes == 0 {
		cfg.Auth.SessionTTLMinutes = 30
	}
	if cfg.Dispatch.Workers == 0 {
		cfg.Dispatch.Workers = 8
	}
	if cfg.Dispatch.SchedulerIntervalSeconds == 0 {
		cfg.Dispatch.SchedulerIntervalSeconds = 60
	}

	return &cfg, nil
}

// LoadFromEnv loads the config file and applies environment overrides.
// A .env file is honored when present.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		cfg.Server.BaseURL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	// SMTP overrides
	if v := os.Getenv("SMTP_SERVER"); v != "" {
		cfg.SMTP.Host = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.SMTP.Port = port
		}
	}
	if v := os.Getenv("SMTP_USERNAME"); v != "" {
		cfg.SMTP.Username = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.SMTP.Password = v
	}
	if v := os.Getenv("SMTP_FROM"); v != "" {
		cfg.SMTP.From = v
	}

	// Token secret override
	if v := os.Getenv("SECRET_KEY"); v != "" {
		cfg.Token.Secret = v
	}

	return cfg, nil
}
