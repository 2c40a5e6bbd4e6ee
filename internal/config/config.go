// Package config loads service configuration from defaults, an optional
// config file, a .env file and GASTOSMART_* environment variables, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dvloznov/gastosmart/internal/domain"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	Store  StoreConfig  `mapstructure:"store"`
	Rates  RatesConfig  `mapstructure:"rates"`
	Ledger LedgerConfig `mapstructure:"ledger"`
	AI     AIConfig     `mapstructure:"ai"`
	Jobs   JobsConfig   `mapstructure:"jobs"`
	Blob   BlobConfig   `mapstructure:"blob"`
	Notion NotionConfig `mapstructure:"notion"`
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// StoreConfig selects and locates the record store.
type StoreConfig struct {
	Backend      string        `mapstructure:"backend"` // memory | bigquery
	ProjectID    string        `mapstructure:"project_id"`
	DatasetID    string        `mapstructure:"dataset_id"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// RatesConfig seeds the exchange-rate table. Values are decimal strings.
type RatesConfig struct {
	USD string `mapstructure:"usd"`
	UI  string `mapstructure:"ui"`
}

// Values parses the configured rates. Range checks are left to the rate
// table.
func (r RatesConfig) Values() (map[domain.Currency]decimal.Decimal, error) {
	out := make(map[domain.Currency]decimal.Decimal, 2)
	for c, raw := range map[domain.Currency]string{domain.USD: r.USD, domain.UI: r.UI} {
		v, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("rates.%s: %w", strings.ToLower(string(c)), err)
		}
		out[c] = v
	}
	return out, nil
}

// LedgerConfig tunes dashboard memoization.
type LedgerConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// AIConfig holds Gemini settings. Credentials come from the genai client's
// own environment (GOOGLE_API_KEY or application default credentials).
type AIConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	Model             string `mapstructure:"model"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
}

// JobsConfig sizes the receipt-scan worker pool.
type JobsConfig struct {
	Workers    int `mapstructure:"workers"`
	MaxRetries int `mapstructure:"max_retries"`
}

// BlobConfig selects where receipt images are archived.
type BlobConfig struct {
	Backend string `mapstructure:"backend"` // memory | gcs
	Bucket  string `mapstructure:"bucket"`
}

// NotionConfig holds the balance export target.
type NotionConfig struct {
	Token      string `mapstructure:"token"`
	DatabaseID string `mapstructure:"database_id"`
}

const (
	BackendMemory   = "memory"
	BackendBigQuery = "bigquery"
	BackendGCS      = "gcs"
)

// Load reads configuration. A missing .env or config file is not an error.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("Load: reading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if path := os.Getenv("GASTOSMART_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("gastosmart")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("GASTOSMART")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		explicit := os.Getenv("GASTOSMART_CONFIG") != ""
		if explicit || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("Load: reading config file: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("Load: unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("Load: %w", err)
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_upload_bytes", 10<<20)
	v.SetDefault("server.request_timeout", 60*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("store.project_id", "")
	v.SetDefault("store.dataset_id", "gastosmart")
	v.SetDefault("store.poll_interval", 5*time.Second)
	v.SetDefault("rates.usd", "42.50")
	v.SetDefault("rates.ui", "6.16")
	v.SetDefault("ledger.cache_ttl", 30*time.Second)
	v.SetDefault("ai.enabled", false)
	v.SetDefault("ai.model", "gemini-2.5-flash")
	v.SetDefault("ai.requests_per_minute", 30)
	v.SetDefault("jobs.workers", 5)
	v.SetDefault("jobs.max_retries", 3)
	v.SetDefault("blob.backend", BackendMemory)
	v.SetDefault("blob.bucket", "")
	v.SetDefault("notion.token", "")
	v.SetDefault("notion.database_id", "")
}

// Validate checks cross-field requirements.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendBigQuery:
		if c.Store.ProjectID == "" {
			return errors.New("store.project_id is required for the bigquery backend")
		}
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}

	switch c.Blob.Backend {
	case BackendMemory:
	case BackendGCS:
		if c.Blob.Bucket == "" {
			return errors.New("blob.bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("unknown blob.backend %q", c.Blob.Backend)
	}

	if c.Jobs.Workers <= 0 {
		return errors.New("jobs.workers must be positive")
	}
	if _, err := c.Rates.Values(); err != nil {
		return err
	}
	return nil
}
