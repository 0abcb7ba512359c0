// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config carries everything the binaries need to wire the sync layer.
type Config struct {
	// ProjectID is the Firebase/GCP project hosting the document store.
	ProjectID string
	// CredentialsFile is an optional service-account key path; empty
	// means application default credentials.
	CredentialsFile string
	// Collection is the transactions collection name.
	Collection string
	// Port is the HTTP API listen port.
	Port string
	// PageSize is the default pagination window.
	PageSize int
	// RefreshInterval is the fetch throttle window.
	RefreshInterval time.Duration
	// ReconcileDelay is the lag before the post-mutation refetch.
	ReconcileDelay time.Duration
	// ExportDataset and ExportTable locate the BigQuery archive target.
	ExportDataset string
	ExportTable   string
}

// Load reads the environment. Only the project id is mandatory.
func Load() (*Config, error) {
	cfg := &Config{
		ProjectID:       os.Getenv("MONEYFLOW_PROJECT_ID"),
		CredentialsFile: os.Getenv("MONEYFLOW_CREDENTIALS_FILE"),
		Collection:      getEnv("MONEYFLOW_COLLECTION", "transactions"),
		Port:            getEnv("MONEYFLOW_PORT", "8080"),
		PageSize:        getEnvInt("MONEYFLOW_PAGE_SIZE", 20),
		RefreshInterval: getEnvDuration("MONEYFLOW_REFRESH_INTERVAL", 5*time.Second),
		ReconcileDelay:  getEnvDuration("MONEYFLOW_RECONCILE_DELAY", 1500*time.Millisecond),
		ExportDataset:   getEnv("MONEYFLOW_EXPORT_DATASET", "finance"),
		ExportTable:     getEnv("MONEYFLOW_EXPORT_TABLE", "transactions_archive"),
	}

	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("MONEYFLOW_PROJECT_ID is required")
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
