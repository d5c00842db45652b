package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token string `yaml:"token" envconfig:"BOT_TOKEN"`
	// APIURL overrides the Bot API base URL, mainly for tests.
	APIURL string `yaml:"api_url" envconfig:"TELEGRAM_API_URL"`
	// LongPollTimeoutSeconds defines the server-side getUpdates wait; 0 -> default.
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// FetcherConfig bounds the shutdown of the update fetch loop.
type FetcherConfig struct {
	StopGraceSeconds      int `yaml:"stop_grace_seconds" envconfig:"FETCHER_STOP_GRACE_SECONDS"`
	InterruptGraceSeconds int `yaml:"interrupt_grace_seconds" envconfig:"FETCHER_INTERRUPT_GRACE_SECONDS"`
}

// SenderConfig tunes the outbound dispatcher pool.
type SenderConfig struct {
	QueueSize      int     `yaml:"queue_size" envconfig:"SENDER_QUEUE_SIZE"`
	Workers        int     `yaml:"workers" envconfig:"SENDER_WORKERS"`
	MaxRetries     int     `yaml:"max_retries" envconfig:"SENDER_MAX_RETRIES"`
	RetryBackoffMS int     `yaml:"retry_backoff_ms" envconfig:"SENDER_RETRY_BACKOFF_MS"`
	MaxDurationMS  int     `yaml:"max_duration_ms" envconfig:"SENDER_MAX_DURATION_MS"`
	SendsPerSecond float64 `yaml:"sends_per_second" envconfig:"SENDER_SENDS_PER_SECOND"`
	SendBurst      int     `yaml:"send_burst" envconfig:"SENDER_SEND_BURST"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

// Config aggregates the full bot configuration.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Fetcher  FetcherConfig  `yaml:"fetcher"`
	Sender   SenderConfig   `yaml:"sender"`
	Logging  LoggingConfig  `yaml:"logging"`
	Database DatabaseConfig `yaml:"database"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required fields and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	if cfg.Telegram.APIURL == "" {
		cfg.Telegram.APIURL = "https://api.telegram.org"
	}
	cfg.Telegram.APIURL = strings.TrimRight(cfg.Telegram.APIURL, "/")
	if cfg.Telegram.LongPollTimeoutSeconds < 0 {
		return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
	}
	if cfg.Telegram.LongPollTimeoutSeconds == 0 {
		cfg.Telegram.LongPollTimeoutSeconds = 5
	}

	if cfg.Fetcher.StopGraceSeconds <= 0 {
		cfg.Fetcher.StopGraceSeconds = 5
	}
	if cfg.Fetcher.InterruptGraceSeconds <= 0 {
		cfg.Fetcher.InterruptGraceSeconds = 5
	}

	if cfg.Sender.QueueSize <= 0 {
		cfg.Sender.QueueSize = 256
	}
	if cfg.Sender.Workers <= 0 {
		cfg.Sender.Workers = runtime.NumCPU() * 4
	}
	if cfg.Sender.MaxRetries < 0 {
		cfg.Sender.MaxRetries = 0
	}
	if cfg.Sender.RetryBackoffMS <= 0 {
		cfg.Sender.RetryBackoffMS = 2000
	}
	if cfg.Sender.MaxDurationMS <= 0 {
		cfg.Sender.MaxDurationMS = 12000
	}
	if cfg.Sender.SendsPerSecond <= 0 {
		cfg.Sender.SendsPerSecond = 25
	}
	if cfg.Sender.SendBurst <= 0 {
		cfg.Sender.SendBurst = 5
	}

	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxConnections <= 0 {
		cfg.Database.MaxConnections = 5
	}

	return nil
}
