package infra

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"

	"github.com/cryptosim/cryptosim/internal/config"
	"github.com/cryptosim/cryptosim/internal/ledger"
)

func roundTrip(t *testing.T, repo ledger.Repository) {
	t.Helper()
	ctx := context.Background()

	if _, err := repo.Load(ctx); err != ledger.ErrNotFound {
		t.Fatalf("expected ErrNotFound on empty store, got %v", err)
	}

	p := ledger.NewPortfolio()
	p.BTCBalance = decimal.RequireFromString("0.00123456")
	if err := repo.Save(ctx, p); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !got.Equal(p) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestOpenSelectsRepositoryByDriver(t *testing.T) {
	mr := miniredis.RunT(t)
	dir := t.TempDir()

	cases := []config.Config{
		{StoreDriver: config.DriverMemory},
		{StoreDriver: config.DriverFile, StoreFile: filepath.Join(dir, "portfolio.json")},
		{StoreDriver: config.DriverSQLite, SQLitePath: filepath.Join(dir, "sim.db"), PortfolioKey: "main"},
		{StoreDriver: config.DriverRedis, RedisURL: "redis://" + mr.Addr(), PortfolioKey: "main"},
	}

	for _, cfg := range cases {
		t.Run(cfg.StoreDriver, func(t *testing.T) {
			res, err := Open(context.Background(), cfg)
			if err != nil {
				t.Fatalf("open %s: %v", cfg.StoreDriver, err)
			}
			t.Cleanup(func() { _ = res.Close() })
			roundTrip(t, res.Repository)
		})
	}
}

func TestOpenConnectsCacheForAnyDriver(t *testing.T) {
	mr := miniredis.RunT(t)

	res, err := Open(context.Background(), config.Config{StoreDriver: config.DriverMemory, RedisURL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer res.Close()

	if res.Cache == nil {
		t.Fatal("expected redis client to be connected")
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), config.Config{StoreDriver: "etcd"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	if _, err := OpenSQLite(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
