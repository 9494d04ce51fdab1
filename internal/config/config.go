package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultAppName         = "CryptoSim"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultStoreFile       = "portfolio.json"
	defaultSQLitePath      = "cryptosim.db"
	defaultPortfolioKey    = "main"
	defaultPriceAPIURL     = "https://api.binance.com"
	defaultPriceSymbol     = "BTCUSDT"
	defaultMonitorInterval = 60 * time.Second
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultWriteRateLimit  = 120
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
	monitorIntervalEnvVar  = "MONITOR_INTERVAL"
	writeRateLimitEnvVar   = "WRITE_RATE_LIMIT"
	configFileEnvVar       = "CONFIG_FILE"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Config captures application runtime configuration.
type Config struct {
	AppName         string        `yaml:"app_name"`
	AppEnv          string        `yaml:"app_env"`
	Port            string        `yaml:"port"`
	LogLevel        string        `yaml:"log_level"`
	StoreDriver     string        `yaml:"store_driver"`
	DatabaseURL     string        `yaml:"database_url"`
	RedisURL        string        `yaml:"redis_url"`
	SQLitePath      string        `yaml:"sqlite_path"`
	StoreFile       string        `yaml:"store_file"`
	PortfolioKey    string        `yaml:"portfolio_key"`
	MonitorInterval time.Duration `yaml:"monitor_interval"`
	ShutdownPeriod  time.Duration `yaml:"shutdown_timeout"`
	IdempotencyTTL  time.Duration `yaml:"idempotency_ttl"`
	WriteRateLimit  int           `yaml:"write_rate_limit"`
	PriceAPIURL     string        `yaml:"price_api_url"`
	PriceSymbol     string        `yaml:"price_symbol"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		AppName:         defaultAppName,
		AppEnv:          defaultAppEnv,
		Port:            defaultPort,
		LogLevel:        defaultLogLevel,
		StoreDriver:     DriverMemory,
		SQLitePath:      defaultSQLitePath,
		StoreFile:       defaultStoreFile,
		PortfolioKey:    defaultPortfolioKey,
		MonitorInterval: defaultMonitorInterval,
		ShutdownPeriod:  defaultShutdownDelay,
		IdempotencyTTL:  defaultIdempotencyTTL,
		WriteRateLimit:  defaultWriteRateLimit,
		PriceAPIURL:     defaultPriceAPIURL,
		PriceSymbol:     defaultPriceSymbol,
	}
}

// Load builds a Config from defaults, the YAML file named by CONFIG_FILE (if
// any) and finally environment variables, which take precedence.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv(configFileEnvVar); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return Config{}, err
		}
	}

	cfg.AppName = getEnv("APP_NAME", cfg.AppName)
	cfg.AppEnv = getEnv("APP_ENV", cfg.AppEnv)
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", cfg.LogLevel))
	cfg.StoreDriver = strings.ToLower(getEnv("STORE_DRIVER", cfg.StoreDriver))
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.SQLitePath = getEnv("SQLITE_PATH", cfg.SQLitePath)
	cfg.StoreFile = getEnv("STORE_FILE", cfg.StoreFile)
	cfg.PortfolioKey = getEnv("PORTFOLIO_KEY", cfg.PortfolioKey)
	cfg.PriceAPIURL = getEnv("PRICE_API_URL", cfg.PriceAPIURL)
	cfg.PriceSymbol = strings.ToUpper(getEnv("PRICE_SYMBOL", cfg.PriceSymbol))

	var err error
	if cfg.ShutdownPeriod, err = durationEnv(shutdownSecondsEnvVar, shutdownDurationEnvVar, cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv(idemTTLSecondsEnvVar, idemTTLDurEnvVar, cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if v := os.Getenv(monitorIntervalEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", monitorIntervalEnvVar, err)
		}
		cfg.MonitorInterval = d
	}
	if v := os.Getenv(writeRateLimitEnvVar); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", writeRateLimitEnvVar, err)
		}
		cfg.WriteRateLimit = n
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the selected store driver has what it needs.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory:
	case DriverFile:
		if c.StoreFile == "" {
			return fmt.Errorf("STORE_FILE must be set for the file store")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH must be set for the sqlite store")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set for the postgres store")
		}
	case DriverRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL must be set for the redis store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.MonitorInterval <= 0 {
		return fmt.Errorf("%s must be positive", monitorIntervalEnvVar)
	}
	if c.WriteRateLimit < 0 {
		return fmt.Errorf("%s must not be negative", writeRateLimitEnvVar)
	}
	return nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// overlayFile replaces defaults with whatever the YAML file sets.
func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func durationEnv(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(durationKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
