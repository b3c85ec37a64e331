package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"color-quiz-service/internal/domain"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Question bank sources.
const (
	BankFile     = "file"
	BankPostgres = "postgres"
)

type Config struct {
	Server struct {
		Port            string   `yaml:"port"`
		AllowedOrigins  []string `yaml:"allowed_origins"`
		ShutdownTimeout string   `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Log struct {
		Level      string `yaml:"level"`
		// File enables a rotated JSON log next to the console output.
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"log"`
	Store struct {
		Driver string `yaml:"driver"`
	} `yaml:"store"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	Quiz struct {
		QuestionCount int      `yaml:"question_count"`
		Categories    []string `yaml:"categories"`
		// BankSource is "file" (BankFile) or "postgres".
		BankSource    string   `yaml:"bank_source"`
		BankFile      string   `yaml:"bank_file"`
		CacheTTL      string   `yaml:"cache_ttl"`
	} `yaml:"quiz"`
}

// Load reads YAML config from path and applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Postgres.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("STORE_DRIVER"); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Driver returns the configured store driver, defaulting to postgres when a URL is set.
func (c Config) Driver() string {
	driver := strings.ToLower(strings.TrimSpace(c.Store.Driver))
	if driver != "" {
		return driver
	}
	if c.Postgres.URL != "" {
		return DriverPostgres
	}
	return DriverMemory
}

// BankSource returns the configured question bank source, defaulting to the YAML file.
func (c Config) BankSource() string {
	source := strings.ToLower(strings.TrimSpace(c.Quiz.BankSource))
	if source == "" {
		return BankFile
	}
	return source
}

// Validate rejects combinations the server cannot start with.
func (c Config) Validate() error {
	switch c.Driver() {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("store driver postgres needs postgres.url")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.BankSource() {
	case BankFile:
	case BankPostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("quiz.bank_source postgres needs postgres.url")
		}
	default:
		return fmt.Errorf("unknown quiz.bank_source %q", c.Quiz.BankSource)
	}
	if c.Quiz.QuestionCount < 0 {
		return fmt.Errorf("quiz.question_count must not be negative")
	}
	if _, err := c.CategorySet(); err != nil {
		return fmt.Errorf("quiz.categories: %w", err)
	}
	return nil
}

// CategorySet builds the scoring categories, falling back to the default colors.
func (c Config) CategorySet() (domain.CategorySet, error) {
	if len(c.Quiz.Categories) == 0 {
		return domain.NewCategorySet(domain.DefaultCategories)
	}
	categories := make([]domain.Category, len(c.Quiz.Categories))
	for i, raw := range c.Quiz.Categories {
		categories[i] = domain.Category(raw)
	}
	return domain.NewCategorySet(categories)
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
