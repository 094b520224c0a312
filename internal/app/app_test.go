package app

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"floodguard/internal/config"
	"floodguard/internal/notifier"
	"floodguard/pkg/database"
	"floodguard/pkg/logging"
	"floodguard/pkg/metrics"
)

func loadDefaults(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

func TestNew_Defaults(t *testing.T) {
	cfg := loadDefaults(t)
	collector := metrics.NewCollectorWithRegistry("test", prometheus.NewRegistry())

	a, err := New(context.Background(), cfg, logging.NewNopLogger(), collector)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if a.DB != nil || a.Repo != nil || a.Stats != nil {
		t.Error("history should be disabled by default")
	}
	if a.Gateway != nil || a.Provider != nil {
		t.Error("ledger should be disabled by default")
	}
	if a.Session == nil || a.Session.Snapshot().IsConnected {
		t.Error("a disconnected session is expected without a ledger")
	}
	if _, ok := a.Notifier.(notifier.Nop); !ok {
		t.Errorf("notifier = %T, want Nop", a.Notifier)
	}
	if a.Flood == nil || a.Sync == nil {
		t.Error("flood data and sync services are always wired")
	}
	if err := a.ConnectSession(context.Background()); err != nil {
		t.Errorf("ConnectSession without provider: %v", err)
	}
}

func TestNew_SQLiteHistory(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.Database.Enabled = true
	cfg.Database.Driver = database.DriverSQLite
	cfg.Database.Path = ":memory:"
	collector := metrics.NewCollectorWithRegistry("test", prometheus.NewRegistry())

	a, err := New(context.Background(), cfg, logging.NewNopLogger(), collector)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if a.DB == nil || a.Repo == nil || a.Stats == nil {
		t.Fatal("history components missing")
	}
	if err := a.Repo.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}
}

func TestNetwork(t *testing.T) {
	cfg := loadDefaults(t)
	n := Network(cfg)

	if n.ChainID != 1043 || n.ChainIDHex() != "0x413" || n.CurrencySymbol != "BDAG" || n.Decimals != 18 {
		t.Errorf("unexpected network: %+v", n)
	}
	if len(n.RPCURLs) != 1 || len(n.ExplorerURLs) != 1 {
		t.Errorf("urls = %v %v", n.RPCURLs, n.ExplorerURLs)
	}
}
