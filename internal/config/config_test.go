package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var envKeys = []string{
	"APP_NAME", "APP_ENV", "PORT", "LOG_LEVEL", "STORE_DRIVER", "DATABASE_URL", "REDIS_URL",
	"SQLITE_PATH", "STORE_FILE", "PORTFOLIO_KEY", "PRICE_API_URL", "PRICE_SYMBOL",
	monitorIntervalEnvVar, writeRateLimitEnvVar, configFileEnvVar,
	shutdownSecondsEnvVar, shutdownDurationEnvVar, idemTTLSecondsEnvVar, idemTTLDurEnvVar,
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StoreDriver != DriverMemory {
		t.Fatalf("expected memory driver, got %q", cfg.StoreDriver)
	}
	if cfg.PortfolioKey != "main" {
		t.Fatalf("expected portfolio key main, got %q", cfg.PortfolioKey)
	}
	if cfg.MonitorInterval != 60*time.Second {
		t.Fatalf("expected 60s monitor interval, got %s", cfg.MonitorInterval)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address %q", cfg.Address())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "Redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv(monitorIntervalEnvVar, "5s")
	t.Setenv(shutdownSecondsEnvVar, "3")
	t.Setenv(idemTTLDurEnvVar, "1h")
	t.Setenv(writeRateLimitEnvVar, "10")
	t.Setenv("PORT", ":9000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StoreDriver != DriverRedis {
		t.Fatalf("expected redis driver, got %q", cfg.StoreDriver)
	}
	if cfg.MonitorInterval != 5*time.Second || cfg.ShutdownPeriod != 3*time.Second || cfg.IdempotencyTTL != time.Hour {
		t.Fatalf("unexpected durations: %+v", cfg)
	}
	if cfg.WriteRateLimit != 10 {
		t.Fatalf("expected rate limit 10, got %d", cfg.WriteRateLimit)
	}
	if cfg.Address() != ":9000" {
		t.Fatalf("unexpected address %q", cfg.Address())
	}
}

func TestLoadRequiresDriverSettings(t *testing.T) {
	cases := map[string]string{
		DriverPostgres: "DATABASE_URL",
		DriverRedis:    "REDIS_URL",
	}
	for driver := range cases {
		t.Run(driver, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("STORE_DRIVER", driver)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s without %s", driver, cases[driver])
			}
		})
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "mongo")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestLoadRejectsBadDurations(t *testing.T) {
	clearEnv(t)
	t.Setenv(monitorIntervalEnvVar, "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid monitor interval")
	}

	clearEnv(t)
	t.Setenv(shutdownSecondsEnvVar, "ten")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid shutdown seconds")
	}
}

func TestLoadYAMLOverlay(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "cryptosim.yaml")
	doc := []byte("store_driver: sqlite\nsqlite_path: /tmp/sim.db\nportfolio_key: alice\nmonitor_interval: 30s\nport: \"7000\"\n")
	if err := os.WriteFile(path, doc, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(configFileEnvVar, path)
	t.Setenv("PORT", "7100")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StoreDriver != DriverSQLite || cfg.SQLitePath != "/tmp/sim.db" {
		t.Fatalf("file settings not applied: %+v", cfg)
	}
	if cfg.PortfolioKey != "alice" {
		t.Fatalf("expected portfolio key alice, got %q", cfg.PortfolioKey)
	}
	if cfg.MonitorInterval != 30*time.Second {
		t.Fatalf("expected 30s interval, got %s", cfg.MonitorInterval)
	}
	if cfg.Port != "7100" {
		t.Fatalf("environment should win over file, got port %q", cfg.Port)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(configFileEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
