package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

const (
	sourceHTTP     = "http"
	sourcePostgres = "postgres"
)

// Config is read from defaults, then the optional yaml file, then the
// environment, each layer overriding the previous one.
type Config struct {
	Port           string   `yaml:"port" env:"GATEWAY_PORT"`
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	Log struct {
		Level   string `yaml:"level" env:"LOG_LEVEL"`
		Console bool   `yaml:"console" env:"LOG_CONSOLE"`
	} `yaml:"log"`

	Source struct {
		Kind          string        `yaml:"kind" env:"CONFIG_SOURCE"`
		APIURL        string        `yaml:"api_url" env:"COMPETITION_API_URL"`
		FreshFor      time.Duration `yaml:"fresh_for" env:"CONFIG_FRESH_FOR"`
		RetryAfter    time.Duration `yaml:"retry_after" env:"CONFIG_RETRY_AFTER"`
		NotifyChannel string        `yaml:"notify_channel" env:"CONFIG_NOTIFY_CHANNEL"`
		Listen        bool          `yaml:"listen" env:"CONFIG_LISTEN"`
	} `yaml:"source"`

	Clock struct {
		TickInterval time.Duration `yaml:"tick_interval" env:"CLOCK_TICK_INTERVAL"`
		IdleInterval time.Duration `yaml:"idle_interval" env:"CLOCK_IDLE_INTERVAL"`
	} `yaml:"clock"`

	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"REDIS_DB"`
		Key      string `yaml:"key" env:"REDIS_CONFIG_KEY"`
	} `yaml:"redis"`

	NATS struct {
		URL           string `yaml:"url" env:"NATS_URL"`
		Stream        string `yaml:"stream" env:"NATS_STREAM"`
		SubjectPrefix string `yaml:"subject_prefix" env:"NATS_SUBJECT_PREFIX"`
	} `yaml:"nats"`
}

func defaultConfig() Config {
	var cfg Config
	cfg.Port = "8081"
	cfg.AllowedOrigins = []string{"*"}
	cfg.Log.Level = "info"
	cfg.Log.Console = true
	cfg.Source.Kind = sourceHTTP
	cfg.Source.APIURL = "http://localhost:8080"
	cfg.Source.FreshFor = 5 * time.Minute
	cfg.Source.RetryAfter = 10 * time.Second
	cfg.Source.NotifyChannel = "competition_config_updated"
	cfg.Clock.TickInterval = time.Second
	cfg.Clock.IdleInterval = 5 * time.Minute
	cfg.Redis.Key = "competition:config"
	cfg.NATS.Stream = "COMPETITION_PHASES"
	cfg.NATS.SubjectPrefix = "competition.phase"
	return cfg
}

// loadConfig layers the yaml file at path (skipped if missing) and the
// environment over the defaults.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := env.Parse(&config); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	switch c.Source.Kind {
	case sourceHTTP:
		if c.Source.APIURL == "" {
			return errors.New("COMPETITION_API_URL is required for the http source")
		}
	case sourcePostgres:
	default:
		return fmt.Errorf("unknown config source %q", c.Source.Kind)
	}
	if c.Clock.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", c.Clock.TickInterval)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
