package config

import (
	"testing"
	"time"
)

func TestLoad_RequiresProjectID(t *testing.T) {
	t.Setenv("MONEYFLOW_PROJECT_ID", "")

	if _, err := Load(); err == nil {
		t.Error("Load should fail without a project id")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MONEYFLOW_PROJECT_ID", "demo-project")
	t.Setenv("MONEYFLOW_COLLECTION", "")
	t.Setenv("MONEYFLOW_PORT", "")
	t.Setenv("MONEYFLOW_PAGE_SIZE", "")
	t.Setenv("MONEYFLOW_REFRESH_INTERVAL", "")
	t.Setenv("MONEYFLOW_RECONCILE_DELAY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Collection != "transactions" {
		t.Errorf("collection = %q", cfg.Collection)
	}
	if cfg.Port != "8080" {
		t.Errorf("port = %q", cfg.Port)
	}
	if cfg.PageSize != 20 {
		t.Errorf("page size = %d", cfg.PageSize)
	}
	if cfg.RefreshInterval != 5*time.Second {
		t.Errorf("refresh interval = %v", cfg.RefreshInterval)
	}
	if cfg.ReconcileDelay != 1500*time.Millisecond {
		t.Errorf("reconcile delay = %v", cfg.ReconcileDelay)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("MONEYFLOW_PROJECT_ID", "demo-project")
	t.Setenv("MONEYFLOW_PAGE_SIZE", "50")
	t.Setenv("MONEYFLOW_REFRESH_INTERVAL", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.PageSize != 50 {
		t.Errorf("page size = %d, want 50", cfg.PageSize)
	}
	if cfg.RefreshInterval != 30*time.Second {
		t.Errorf("refresh interval = %v, want 30s", cfg.RefreshInterval)
	}
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("MONEYFLOW_PROJECT_ID", "demo-project")
	t.Setenv("MONEYFLOW_PAGE_SIZE", "many")
	t.Setenv("MONEYFLOW_RECONCILE_DELAY", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.PageSize != 20 {
		t.Errorf("page size = %d, want default 20", cfg.PageSize)
	}
	if cfg.ReconcileDelay != 1500*time.Millisecond {
		t.Errorf("reconcile delay = %v, want default", cfg.ReconcileDelay)
	}
}
