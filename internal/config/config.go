// Package config provides configuration management for the predictor application.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Analysis    AnalysisConfig  `mapstructure:"analysis"`
	News        NewsConfig      `mapstructure:"news"`
	Schedule    ScheduleConfig  `mapstructure:"schedule"`
	Security    SecurityConfig  `mapstructure:"security"`
	UI          UIConfig        `mapstructure:"ui"`
	Credentials Credentials     `mapstructure:"-"` // Loaded separately
}

// DatabaseConfig holds persistence configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// RedisConfig holds cache configuration.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AnalysisConfig holds analysis pipeline configuration.
type AnalysisConfig struct {
	LookbackDays  int `mapstructure:"lookback_days"`
	MinSampleSize int `mapstructure:"min_sample_size"`
	BatchWorkers  int `mapstructure:"batch_workers"`
}

// NewsConfig holds news source configuration.
type NewsConfig struct {
	Sources        []NewsSourceConfig `mapstructure:"sources"`
	RatePerSecond  float64            `mapstructure:"rate_per_second"`
	RequestTimeout time.Duration      `mapstructure:"request_timeout"`
}

// NewsSourceConfig describes one headline feed.
type NewsSourceConfig struct {
	Name    string  `mapstructure:"name"`
	URL     string  `mapstructure:"url"`
	Quality float64 `mapstructure:"quality"`
}

// ScheduleConfig holds cron schedule configuration.
type ScheduleConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	PriceAppendSpec string `mapstructure:"price_append"`
	NewsFetchSpec   string `mapstructure:"news_fetch"`
	DailyAnalysis   string `mapstructure:"daily_analysis"`
	WeeklyCorrelate string `mapstructure:"weekly_correlate"`
}

// SecurityConfig holds security-related configuration.
type SecurityConfig struct {
	EncryptCredentials bool          `mapstructure:"encrypt_credentials"`
	SessionTimeout     time.Duration `mapstructure:"session_timeout"`
}

// UIConfig holds UI-related configuration.
type UIConfig struct {
	ColorEnabled bool   `mapstructure:"color_enabled"`
	DateFormat   string `mapstructure:"date_format"`
	TimeFormat   string `mapstructure:"time_format"`
}

// Credentials holds API credentials.
type Credentials struct {
	Kite  KiteCredentials  `mapstructure:"kite"`
	Redis RedisCredentials `mapstructure:"redis"`
}

// KiteCredentials holds Kite Connect API credentials for price data.
type KiteCredentials struct {
	APIKey      string `mapstructure:"api_key"`
	APISecret   string `mapstructure:"api_secret"`
	AccessToken string `mapstructure:"access_token"`
}

// RedisCredentials holds the Redis password when auth is required.
type RedisCredentials struct {
	Password string `mapstructure:"password"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/stock-predictor"
	}
	return filepath.Join(home, ".config", "stock-predictor")
}

// Default returns the built-in configuration defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: filepath.Join(DefaultConfigDir(), "predictor.db"),
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
		},
		Analysis: AnalysisConfig{
			LookbackDays:  365,
			MinSampleSize: 20,
			BatchWorkers:  4,
		},
		News: NewsConfig{
			RatePerSecond:  2.0,
			RequestTimeout: 30 * time.Second,
		},
		Schedule: ScheduleConfig{
			Enabled:         false,
			PriceAppendSpec: "0 18 * * 1-5",
			NewsFetchSpec:   "0 */4 * * *",
			DailyAnalysis:   "30 18 * * 1-5",
			WeeklyCorrelate: "0 6 * * 6",
		},
		Security: SecurityConfig{
			EncryptCredentials: true,
			SessionTimeout:     8 * time.Hour,
		},
		UI: UIConfig{
			ColorEnabled: true,
			DateFormat:   "02-Jan-2006",
			TimeFormat:   "15:04:05",
		},
	}
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := Default()

	// Load main config
	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	// Load credentials
	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// An empty database path in the config file means the default location.
	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(configDir, "predictor.db")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir, name string, target interface{}) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found, create template
			return createTemplateConfig(configDir, name)
		}
		return err
	}

	return v.Unmarshal(target)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateCredentials(configDir)
		}
		return err
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	// Kite credentials
	if v := os.Getenv("KITE_API_KEY"); v != "" {
		cfg.Credentials.Kite.APIKey = v
	}
	if v := os.Getenv("KITE_API_SECRET"); v != "" {
		cfg.Credentials.Kite.APISecret = v
	}
	if v := os.Getenv("KITE_ACCESS_TOKEN"); v != "" {
		cfg.Credentials.Kite.AccessToken = v
	}

	// Redis
	if v := os.Getenv("PREDICTOR_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("PREDICTOR_REDIS_PASSWORD"); v != "" {
		cfg.Credentials.Redis.Password = v
	}

	// Database
	if v := os.Getenv("PREDICTOR_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path must not be empty")
	}

	if c.Analysis.LookbackDays <= 0 {
		return fmt.Errorf("lookback_days must be positive")
	}
	if c.Analysis.MinSampleSize <= 0 {
		return fmt.Errorf("min_sample_size must be positive")
	}
	if c.Analysis.BatchWorkers <= 0 {
		return fmt.Errorf("batch_workers must be positive")
	}

	if c.News.RatePerSecond <= 0 {
		return fmt.Errorf("news rate_per_second must be positive")
	}

	for i, src := range c.News.Sources {
		if src.URL == "" {
			return fmt.Errorf("news source %d has empty url", i)
		}
		if src.Quality < 0 || src.Quality > 1 {
			return fmt.Errorf("news source %q quality must be between 0 and 1", src.Name)
		}
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis addr must not be empty when redis is enabled")
	}

	return nil
}
