package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("port = %s", cfg.Port)
	}
	if cfg.Planner.PlacesPerCategory != 10 || cfg.Planner.MaxClusterRadiusKm != 6 {
		t.Fatalf("planner defaults = %+v", cfg.Planner)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
port: "9090"
rateLimit:
  perSecond: 5
  burst: 10
planner:
  placesPerCategory: 4
  maxClusterRadiusKm: 3.5
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7070")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "7070" {
		t.Fatalf("env override lost: port = %s", cfg.Port)
	}
	if cfg.RateLimit.PerSecond != 5 || cfg.RateLimit.Burst != 10 {
		t.Fatalf("rate limit = %+v", cfg.RateLimit)
	}
	if cfg.Planner.PlacesPerCategory != 4 || cfg.Planner.MaxClusterRadiusKm != 3.5 {
		t.Fatalf("planner file values lost: %+v", cfg.Planner)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")
	if _, err := Load(); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
