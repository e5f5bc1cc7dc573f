package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server" envconfig:"SERVER"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Paths      PathsConfig      `yaml:"paths" envconfig:"PATHS"`
	Downloader DownloaderConfig `yaml:"downloader" envconfig:"DOWNLOADER"`
	Reconcile  ReconcileConfig  `yaml:"reconcile" envconfig:"RECONCILE"`
}

// ServerConfig contains HTTP server configuration for the ledger service
type ServerConfig struct {
	Port            int             `yaml:"port" envconfig:"PORT" default:"8855"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"100"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"50"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/nsecli.log"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	DataDir      string `yaml:"data_dir" envconfig:"DATA_DIR" default:"data"`
	LedgersDir   string `yaml:"ledgers_dir" envconfig:"LEDGERS_DIR" default:"data/ledgers"`
	DownloadsDir string `yaml:"downloads_dir" envconfig:"DOWNLOADS_DIR" default:"data/downloads"`
	ReportsDir   string `yaml:"reports_dir" envconfig:"REPORTS_DIR" default:"data/reports"`
	LogsDir      string `yaml:"logs_dir" envconfig:"LOGS_DIR" default:"logs"`
}

// DownloaderConfig tunes the NSE download client shared by all file kinds
type DownloaderConfig struct {
	Timeout        time.Duration `yaml:"timeout" envconfig:"TIMEOUT" default:"30s"`
	RequestsPerSec float64       `yaml:"requests_per_sec" envconfig:"REQUESTS_PER_SEC" default:"2"`
	Burst          int           `yaml:"burst" envconfig:"BURST" default:"1"`
	UserAgent      string        `yaml:"user_agent" envconfig:"USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"`
}

// ReconcileConfig tunes the reconciliation driver
type ReconcileConfig struct {
	ServerURL    string        `yaml:"server_url" envconfig:"SERVER_URL" default:"http://127.0.0.1:8855"`
	Workers      int           `yaml:"workers" envconfig:"WORKERS" default:"10"`
	BatchSize    int           `yaml:"batch_size" envconfig:"BATCH_SIZE" default:"50"`
	BatchDelay   time.Duration `yaml:"batch_delay" envconfig:"BATCH_DELAY" default:"1s"`
	MaxInflight  int64         `yaml:"max_inflight" envconfig:"MAX_INFLIGHT" default:"10"`
	MaxAttempts  int           `yaml:"max_attempts" envconfig:"MAX_ATTEMPTS" default:"3"`
	InitialDelay time.Duration `yaml:"initial_delay" envconfig:"INITIAL_DELAY" default:"2s"`
	MaxDelay     time.Duration `yaml:"max_delay" envconfig:"MAX_DELAY" default:"30s"`
}

// Load loads configuration from environment variables and an optional config file.
// Environment variables (prefix NSE) take precedence over file values.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("NSE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if configFile := findConfigFile(); configFile != "" {
		fileCfg, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileCfg, cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mergeConfigs merges file config with env config (env takes precedence)
func mergeConfigs(fileConfig, envConfig Config) Config {
	if envConfig.Server.Port == 0 {
		envConfig.Server.Port = fileConfig.Server.Port
	}
	if envConfig.Server.ReadTimeout == 0 {
		envConfig.Server.ReadTimeout = fileConfig.Server.ReadTimeout
	}
	if envConfig.Reconcile.ServerURL == "" {
		envConfig.Reconcile.ServerURL = fileConfig.Reconcile.ServerURL
	}
	if envConfig.Paths.DataDir == "" {
		envConfig.Paths = fileConfig.Paths
	}

	return envConfig
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Reconcile.Workers <= 0 {
		return fmt.Errorf("reconcile workers must be positive")
	}

	if c.Reconcile.MaxAttempts <= 0 {
		return fmt.Errorf("reconcile max attempts must be positive")
	}

	if c.Logging.Format != "json" {
		c.Logging.Format = "json"
	}

	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/nsecli.log"
	}

	return nil
}

// findConfigFile returns the path to the config file, if one exists
func findConfigFile() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8855,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "both",
			FilePath: "logs/nsecli.log",
		},
		Paths: PathsConfig{
			DataDir:      "data",
			LedgersDir:   "data/ledgers",
			DownloadsDir: "data/downloads",
			ReportsDir:   "data/reports",
			LogsDir:      "logs",
		},
		Downloader: DownloaderConfig{
			Timeout:        30 * time.Second,
			RequestsPerSec: 2,
			Burst:          1,
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Reconcile: ReconcileConfig{
			ServerURL:    "http://127.0.0.1:8855",
			Workers:      10,
			BatchSize:    50,
			BatchDelay:   time.Second,
			MaxInflight:  10,
			MaxAttempts:  3,
			InitialDelay: 2 * time.Second,
			MaxDelay:     30 * time.Second,
		},
	}
}
