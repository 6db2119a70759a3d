package config

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	Env        string
	ListenAddr string
	BaseURL    string

	// Store selects the persistence adapter: "postgres" or "memory".
	Store       string
	DatabaseURL string

	PipelineWorkers int
	CycleInterval   time.Duration

	DailyCap             int
	BounceRescuePriority int
	EnrichDailyBudget    int
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var out int
		if _, err := fmt.Sscanf(v, "%d", &out); err == nil {
			return out
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func Load() (Config, error) {
	cfg := Config{
		Env:        getenv("APP_ENV", "development"),
		ListenAddr: getenv("LISTEN_ADDR", ":8080"),
		BaseURL:    getenv("BASE_URL", "http://localhost:8080"),

		Store:       getenv("STORE", "postgres"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		PipelineWorkers: getenvInt("PIPELINE_WORKERS", 1),
		CycleInterval:   getenvDuration("CYCLE_INTERVAL", 5*time.Minute),

		DailyCap:             getenvInt("DAILY_SEND_CAP", 50),
		BounceRescuePriority: getenvInt("BOUNCE_RESCUE_PRIORITY", 35),
		EnrichDailyBudget:    getenvInt("ENRICH_DAILY_BUDGET", 20),
	}
	if cfg.Store == "postgres" && cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL not set")
	}
	return cfg, nil
}
