package configloader

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when CONFIG_PATH is not set.
const DefaultPath = "config/config.yml"

// Config is the top-level configuration structure.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	Files       FilesConfig       `yaml:"files"`
	Networks    []NetworkOverride `yaml:"networks"`
	DEXScreener DEXScreenerConfig `yaml:"dexScreener"`
	Quotes      QuotesConfig      `yaml:"quotes"`
	Staking     StakingConfig     `yaml:"staking"`
	Cache       CacheConfig       `yaml:"cache"`
	RpcClient   RpcClientConfig   `yaml:"rpcClient"`
	Performance PerformanceConfig `yaml:"performance"`
	Supplier    SupplierConfig    `yaml:"supplier"`
	Refresh     RefreshConfig     `yaml:"refresh"`
}

// ServerConfig holds the server-specific configuration. Timeouts are in seconds.
type ServerConfig struct {
	Port           string   `yaml:"port"`
	ReadTimeout    int      `yaml:"readTimeout"`
	WriteTimeout   int      `yaml:"writeTimeout"`
	IdleTimeout    int      `yaml:"idleTimeout"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
	EnablePprof    bool     `yaml:"enablePprof"`

	// SettleTimeoutMillis bounds how long a request waits for loading statuses to resolve.
	SettleTimeoutMillis int64 `yaml:"settleTimeoutMillis"`
}

// LoggingConfig holds the configuration for logging.
type LoggingConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

// FilesConfig points to the data files of the daemon.
type FilesConfig struct {
	Wallets     string `yaml:"wallets"`
	Preferences string `yaml:"preferences"`
}

// NetworkOverride adjusts or disables a built-in network.
type NetworkOverride struct {
	ID                 string   `yaml:"id"`
	RPCURL             string   `yaml:"rpcURL"`
	FallbackRPCURLs    []string `yaml:"fallbackRpcURLs"`
	DEXScreenerChainID string   `yaml:"dexScreenerChainId"`
	Disabled           bool     `yaml:"disabled"`
}

// DEXScreenerConfig holds the configuration for the DEX Screener client.
type DEXScreenerConfig struct {
	BaseURL              string `yaml:"baseURL"`
	RequestTimeoutMillis int64  `yaml:"requestTimeoutMillis"`
}

// QuotesConfig holds configuration for the quote repository.
type QuotesConfig struct {
	MaxTokensPerBatchRequest int `yaml:"maxTokensPerBatchRequest"`
	CacheTTLMinutes          int `yaml:"cacheTTLMinutes"`
}

// StakingConfig holds configuration for the yield balance API. An empty BaseURL disables staking.
type StakingConfig struct {
	BaseURL              string `yaml:"baseURL"`
	APIKey               string `yaml:"apiKey"`
	RequestTimeoutMillis int64  `yaml:"requestTimeoutMillis"`
	CacheTTLMinutes      int    `yaml:"cacheTTLMinutes"`
}

// CacheConfig holds configuration for caching.
type CacheConfig struct {
	DefaultExpirationMinutes int `yaml:"defaultExpirationMinutes"`
	CleanupIntervalMinutes   int `yaml:"cleanupIntervalMinutes"`
}

// RpcClientConfig holds configuration for RPC clients.
type RpcClientConfig struct {
	DefaultTimeoutMs    int64 `yaml:"defaultTimeoutMs"`
	ConnectTimeoutMs    int64 `yaml:"connectTimeoutMs"`
	RateLimit           int   `yaml:"rateLimit"`
	BurstLimit          int   `yaml:"burstLimit"`
	MaxIdleConnsPerHost int   `yaml:"maxIdleConnsPerHost"`
}

// PerformanceConfig holds performance-related configurations.
type PerformanceConfig struct {
	MaxConcurrentRoutines int `yaml:"maxConcurrentRoutines"`
}

// SupplierConfig holds configuration for the shared status streams.
type SupplierConfig struct {
	BufferSize int `yaml:"bufferSize"`
}

// RefreshConfig holds the schedule of the background token list refresh.
// An empty Schedule disables it.
type RefreshConfig struct {
	Schedule       string `yaml:"schedule"` // cron spec, e.g. "@every 5m"
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

// Duration helpers

func (c ServerConfig) SettleTimeout() time.Duration {
	return time.Duration(c.SettleTimeoutMillis) * time.Millisecond
}

func (c RpcClientConfig) CallTimeout() time.Duration {
	return time.Duration(c.DefaultTimeoutMs) * time.Millisecond
}

func (c RpcClientConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutMs) * time.Millisecond
}

func (c DEXScreenerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMillis) * time.Millisecond
}

func (c StakingConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMillis) * time.Millisecond
}

func (c QuotesConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

func (c StakingConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

func (c CacheConfig) DefaultExpiration() time.Duration {
	return time.Duration(c.DefaultExpirationMinutes) * time.Minute
}

func (c RefreshConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c CacheConfig) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalMinutes) * time.Minute
}

// Load reads the YAML configuration file from the given path and applies defaults.
func Load(path string) (*Config, error) {
	logrus.Infof("Loading configuration from path: %s", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config data from %s: %w", path, err)
	}

	applyDefaults(&cfg)

	for i, network := range cfg.Networks {
		if network.ID == "" {
			return nil, fmt.Errorf("network override #%d has no id", i)
		}
	}

	logrus.Info("Configuration loaded successfully.")
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
		logrus.Infof("Server.Port not set, defaulting to %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 15
	}
	// WriteTimeout stays 0 when unset; the stream routes clear their own deadline
	if cfg.Server.IdleTimeout <= 0 {
		cfg.Server.IdleTimeout = 60
	}
	if cfg.Server.SettleTimeoutMillis <= 0 {
		cfg.Server.SettleTimeoutMillis = 10000
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
		logrus.Infof("Logging.Level not set, defaulting to %s", cfg.Logging.Level)
	}

	if cfg.Files.Wallets == "" {
		cfg.Files.Wallets = "data/wallets.yml"
		logrus.Infof("Files.Wallets not set, defaulting to %s", cfg.Files.Wallets)
	}
	if cfg.Files.Preferences == "" {
		cfg.Files.Preferences = "data/preferences.yml"
		logrus.Infof("Files.Preferences not set, defaulting to %s", cfg.Files.Preferences)
	}

	if cfg.DEXScreener.BaseURL == "" {
		cfg.DEXScreener.BaseURL = "https://api.dexscreener.com"
		logrus.Infof("DEXScreener.BaseURL not set, defaulting to %s", cfg.DEXScreener.BaseURL)
	}
	if cfg.DEXScreener.RequestTimeoutMillis == 0 {
		cfg.DEXScreener.RequestTimeoutMillis = 10000
		logrus.Infof("DEXScreener.RequestTimeoutMillis not set, defaulting to %d ms", cfg.DEXScreener.RequestTimeoutMillis)
	}

	if cfg.Quotes.MaxTokensPerBatchRequest == 0 {
		cfg.Quotes.MaxTokensPerBatchRequest = 30 // DEXScreener limit
		logrus.Infof("Quotes.MaxTokensPerBatchRequest not set, defaulting to %d", cfg.Quotes.MaxTokensPerBatchRequest)
	}
	if cfg.Quotes.CacheTTLMinutes == 0 {
		cfg.Quotes.CacheTTLMinutes = 5
		logrus.Infof("Quotes.CacheTTLMinutes not set, defaulting to %d minutes", cfg.Quotes.CacheTTLMinutes)
	}

	if cfg.Staking.BaseURL == "" {
		logrus.Warn("Staking.BaseURL not set, yield balances are disabled")
	}
	if cfg.Staking.RequestTimeoutMillis == 0 {
		cfg.Staking.RequestTimeoutMillis = cfg.DEXScreener.RequestTimeoutMillis
	}
	if cfg.Staking.CacheTTLMinutes == 0 {
		cfg.Staking.CacheTTLMinutes = 15
	}

	if cfg.Cache.DefaultExpirationMinutes == 0 {
		cfg.Cache.DefaultExpirationMinutes = 10
		logrus.Infof("Cache.DefaultExpirationMinutes not set, defaulting to %d minutes", cfg.Cache.DefaultExpirationMinutes)
	}
	if cfg.Cache.CleanupIntervalMinutes == 0 {
		cfg.Cache.CleanupIntervalMinutes = 20
	}

	if cfg.RpcClient.DefaultTimeoutMs == 0 {
		cfg.RpcClient.DefaultTimeoutMs = 10000
		logrus.Infof("RpcClient.DefaultTimeoutMs not set, defaulting to %d ms", cfg.RpcClient.DefaultTimeoutMs)
	}
	if cfg.RpcClient.ConnectTimeoutMs == 0 {
		cfg.RpcClient.ConnectTimeoutMs = 10000
	}
	if cfg.RpcClient.RateLimit == 0 {
		cfg.RpcClient.RateLimit = 10
		logrus.Infof("RpcClient.RateLimit not set, defaulting to %d requests/s", cfg.RpcClient.RateLimit)
	}
	if cfg.RpcClient.BurstLimit == 0 {
		cfg.RpcClient.BurstLimit = cfg.RpcClient.RateLimit
	}

	if cfg.Performance.MaxConcurrentRoutines <= 0 {
		cfg.Performance.MaxConcurrentRoutines = 10
		logrus.Infof("Performance.MaxConcurrentRoutines not set, defaulting to %d", cfg.Performance.MaxConcurrentRoutines)
	}

	if cfg.Supplier.BufferSize <= 0 {
		cfg.Supplier.BufferSize = 4
	}

	if cfg.Refresh.TimeoutSeconds <= 0 {
		cfg.Refresh.TimeoutSeconds = 60
	}
	if cfg.Refresh.Schedule == "" {
		logrus.Info("Refresh.Schedule not set, background refresh is disabled")
	}
}
