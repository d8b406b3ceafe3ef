package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Uploads   UploadsConfig   `yaml:"uploads"`
	Retention RetentionConfig `yaml:"retention"`
	Webhooks  WebhooksConfig  `yaml:"webhooks"`
}

type ServerConfig struct {
	Port          int           `yaml:"port"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	AllowedOrigin string        `yaml:"allowed_origin"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type UploadsConfig struct {
	Dir string `yaml:"dir"`
}

type RetentionConfig struct {
	SweepInterval time.Duration `yaml:"sweep_interval"`
	MaxAge        time.Duration `yaml:"max_age"`
}

type WebhooksConfig struct {
	Enabled     bool          `yaml:"enabled"`
	RetryCount  int           `yaml:"retry_count"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	Timeout     time.Duration `yaml:"timeout"`
	WorkerCount int           `yaml:"worker_count"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "./data/printq.db",
		},
		Uploads: UploadsConfig{
			Dir: "./uploads",
		},
		Retention: RetentionConfig{
			SweepInterval: 15 * time.Minute,
			MaxAge:        24 * time.Hour,
		},
		Webhooks: WebhooksConfig{
			Enabled:     false,
			RetryCount:  3,
			RetryDelay:  5 * time.Second,
			Timeout:     10 * time.Second,
			WorkerCount: 3,
		},
	}
}

// Load reads the YAML config file, falling back to defaults when the file
// does not exist, then applies env overrides.
func Load(configPath string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PRINTQ_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("PRINTQ_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("PRINTQ_UPLOADS_DIR"); v != "" {
		c.Uploads.Dir = v
	}
	if v := os.Getenv("PRINTQ_ALLOWED_ORIGIN"); v != "" {
		c.Server.AllowedOrigin = v
	}
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be non-negative")
	}

	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server write timeout must be non-negative")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if c.Uploads.Dir == "" {
		return fmt.Errorf("uploads directory is required")
	}

	if c.Retention.SweepInterval <= 0 {
		return fmt.Errorf("retention sweep interval must be positive")
	}

	if c.Retention.MaxAge <= 0 {
		return fmt.Errorf("retention max age must be positive")
	}

	if c.Webhooks.RetryCount < 0 {
		return fmt.Errorf("webhook retry count must be non-negative")
	}

	if c.Webhooks.WorkerCount < 1 {
		return fmt.Errorf("webhook worker count must be at least 1")
	}

	return nil
}
