package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Stock Predictor Configuration

[database]
# SQLite database path (defaults to ~/.config/stock-predictor/predictor.db)
path = ""

[redis]
# Enable the Redis cache layer (predictability cache invalidation)
enabled = false
addr = "localhost:6379"
db = 0

[analysis]
# Days of history considered when scoring predictability
lookback_days = 365
# Minimum correlation samples for full statistical confidence
min_sample_size = 20
# Concurrent workers for batch analysis runs
batch_workers = 4

[news]
# Requests per second against news sources
rate_per_second = 2.0
# HTTP timeout per request
request_timeout = "30s"

# Headline feeds to scrape. Quality weights source reliability (0-1).
# [[news.sources]]
# name = "moneycontrol"
# url = "https://www.moneycontrol.com/rss/latestnews.xml"
# quality = 0.9

[schedule]
# Enable the built-in cron scheduler ('predictor schedule run')
enabled = false
# Append daily OHLCV after market close (IST)
price_append = "0 18 * * 1-5"
# Fetch news every 4 hours
news_fetch = "0 */4 * * *"
# Nightly full analysis over active stocks
daily_analysis = "30 18 * * 1-5"
# Weekly correlation regeneration
weekly_correlate = "0 6 * * 6"

[security]
# Encrypt credentials at rest
encrypt_credentials = true
# Session timeout duration (e.g., "8h", "30m")
session_timeout = "8h"

[ui]
# Enable colored output
color_enabled = true
# Date format
date_format = "02-Jan-2006"
# Time format
time_format = "15:04:05"
`

const credentialsTemplate = `# Stock Predictor Credentials
# WARNING: Keep this file secure! Do not commit to version control.

[kite]
api_key = ""
api_secret = ""
access_token = ""

[redis]
password = ""
`

// Init writes template config and credentials files into configDir.
// Existing files are left untouched.
func Init(configDir string) ([]string, error) {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	var written []string

	configPath := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := os.WriteFile(configPath, []byte(configTemplate), 0644); err != nil {
			return written, fmt.Errorf("writing config template: %w", err)
		}
		written = append(written, configPath)
	}

	credsPath := filepath.Join(configDir, "credentials.toml")
	if _, err := os.Stat(credsPath); os.IsNotExist(err) {
		if err := os.WriteFile(credsPath, []byte(credentialsTemplate), 0600); err != nil {
			return written, fmt.Errorf("writing credentials template: %w", err)
		}
		written = append(written, credsPath)
	}

	return written, nil
}

func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return fmt.Errorf("config file not found, created template at %s", path)
}

func createTemplateCredentials(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "credentials.toml")
	// Use restricted permissions for credentials file
	if err := os.WriteFile(path, []byte(credentialsTemplate), 0600); err != nil {
		return fmt.Errorf("writing credentials template: %w", err)
	}

	return fmt.Errorf("credentials file not found, created template at %s", path)
}
