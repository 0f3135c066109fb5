package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultAPIBaseURL is the local development backend.
const DefaultAPIBaseURL = "http://localhost:3000"

// Config represents the complete application configuration
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Chart    ChartConfig    `mapstructure:"chart"`
	History  HistoryConfig  `mapstructure:"history"`
	Server   ServerConfig   `mapstructure:"server"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// APIConfig holds analysis backend configuration
type APIConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryDelayBase  time.Duration `mapstructure:"retry_delay_base"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout"`
}

// SyncConfig holds refresh loop configuration
type SyncConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// ChartConfig holds chart surface and placeholder series configuration
type ChartConfig struct {
	Height               int           `mapstructure:"height"`
	PlaceholderCandles   int           `mapstructure:"placeholder_candles"`
	PlaceholderInterval  time.Duration `mapstructure:"placeholder_interval"`
	PlaceholderBasePrice float64       `mapstructure:"placeholder_base_price"`
}

// HistoryConfig holds the price-sample journal configuration
type HistoryConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	DBPath         string        `mapstructure:"db_path"`
	MaxSamples     int           `mapstructure:"max_samples"`
	CandleInterval time.Duration `mapstructure:"candle_interval"`
	MinCandles     int           `mapstructure:"min_candles"`
	MaxCandles     int           `mapstructure:"max_candles"`
}

// ServerConfig holds the dashboard HTTP server configuration
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	TestNotifyEvery time.Duration `mapstructure:"test_notify_every"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// TelegramConfig holds operator alert configuration
type TelegramConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from an optional file, a .env file and environment variables.
// An empty path skips the config file.
func Load(path string) (*Config, error) {
	// .env is optional; a missing file is not an error
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("BTCVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// API_URL is the deployment-time value shared with the backend's other clients
	if err := v.BindEnv("api.base_url", "BTCVIEW_API_BASE_URL", "API_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind env: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", DefaultAPIBaseURL)
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.max_retries", 3)
	v.SetDefault("api.retry_delay_base", "1s")
	v.SetDefault("api.max_idle_conns", 10)
	v.SetDefault("api.idle_conn_timeout", "90s")

	v.SetDefault("sync.refresh_interval", "5m")

	v.SetDefault("chart.height", 400)
	v.SetDefault("chart.placeholder_candles", 101)
	v.SetDefault("chart.placeholder_interval", "4h")
	v.SetDefault("chart.placeholder_base_price", 68000.0)

	v.SetDefault("history.enabled", false)
	v.SetDefault("history.db_path", "") // empty = $TMPDIR/btcview/history.db
	v.SetDefault("history.max_samples", 20000)
	v.SetDefault("history.candle_interval", "4h")
	v.SetDefault("history.min_candles", 10)
	v.SetDefault("history.max_candles", 200)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.test_notify_every", "10s")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// API
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("api.base_url must be an http(s) URL")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive")
	}
	if c.API.MaxRetries < 1 {
		return fmt.Errorf("api.max_retries must be at least 1")
	}

	// Sync
	if c.Sync.RefreshInterval < 10*time.Second {
		return fmt.Errorf("sync.refresh_interval must be at least 10 seconds")
	}

	// Chart
	if c.Chart.Height < 100 {
		return fmt.Errorf("chart.height must be at least 100")
	}
	if c.Chart.PlaceholderCandles < 2 {
		return fmt.Errorf("chart.placeholder_candles must be at least 2")
	}
	if c.Chart.PlaceholderInterval < time.Minute {
		return fmt.Errorf("chart.placeholder_interval must be at least 1 minute")
	}
	if c.Chart.PlaceholderBasePrice <= 0 {
		return fmt.Errorf("chart.placeholder_base_price must be positive")
	}

	// History
	if c.History.Enabled {
		if c.History.MaxSamples < 1 {
			return fmt.Errorf("history.max_samples must be at least 1")
		}
		if c.History.CandleInterval < time.Minute {
			return fmt.Errorf("history.candle_interval must be at least 1 minute")
		}
		if c.History.MinCandles < 1 {
			return fmt.Errorf("history.min_candles must be at least 1")
		}
		if c.History.MaxCandles < c.History.MinCandles {
			return fmt.Errorf("history.max_candles must not be below history.min_candles")
		}
	}

	// Server
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}

	// Telegram
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Logging
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// ConfigFileFromEnv returns BTCVIEW_CONFIG when set, else fallback.
func ConfigFileFromEnv(fallback string) string {
	if p := os.Getenv("BTCVIEW_CONFIG"); p != "" {
		return p
	}
	return fallback
}
