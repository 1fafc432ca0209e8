package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "DB_DRIVER", "SCRYFALL_REQUEST_DELAY", "ENRICH_COMMIT_EVERY", "ALERT_DEDUP_WINDOW", "REDIS_ADDR"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("expected sqlite driver, got %s", cfg.Database.Driver)
	}
	if cfg.Scryfall.RequestDelay != 50*time.Millisecond {
		t.Errorf("expected 50ms request delay, got %v", cfg.Scryfall.RequestDelay)
	}
	if cfg.Jobs.CommitEvery != 10 {
		t.Errorf("expected commit every 10, got %d", cfg.Jobs.CommitEvery)
	}
	if cfg.Jobs.RefreshMissingLimit != 200 {
		t.Errorf("expected refresh limit 200, got %d", cfg.Jobs.RefreshMissingLimit)
	}
	if cfg.Jobs.AlertDedupWindow != 24*time.Hour {
		t.Errorf("expected 24h alert window, got %v", cfg.Jobs.AlertDedupWindow)
	}
	if cfg.Lock.RedisAddr != "" {
		t.Errorf("expected no redis address, got %s", cfg.Lock.RedisAddr)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "MySQL")
	t.Setenv("SCRYFALL_REQUEST_DELAY", "100ms")
	t.Setenv("ENRICH_COMMIT_EVERY", "25")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("SCRYFALL_BASE_URL", "http://localhost:9999/")

	cfg := Load()

	if cfg.Database.Driver != "mysql" {
		t.Errorf("expected mysql driver, got %s", cfg.Database.Driver)
	}
	if cfg.Scryfall.RequestDelay != 100*time.Millisecond {
		t.Errorf("expected 100ms, got %v", cfg.Scryfall.RequestDelay)
	}
	if cfg.Jobs.CommitEvery != 25 {
		t.Errorf("expected 25, got %d", cfg.Jobs.CommitEvery)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("unexpected origins: %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Scryfall.BaseURL != "http://localhost:9999" {
		t.Errorf("expected trailing slash trimmed, got %s", cfg.Scryfall.BaseURL)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("ENRICH_COMMIT_EVERY", "ten")
	t.Setenv("SCRYFALL_TIMEOUT", "-1s")

	cfg := Load()

	if cfg.Jobs.CommitEvery != 10 {
		t.Errorf("expected fallback 10, got %d", cfg.Jobs.CommitEvery)
	}
	if cfg.Scryfall.Timeout != 5*time.Second {
		t.Errorf("expected fallback 5s, got %v", cfg.Scryfall.Timeout)
	}
}

func TestLoad_SnapshotHour(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"", 23},
		{"0", 0},
		{"6", 6},
		{"24", 23},
		{"-1", 23},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("SNAPSHOT_HOUR", tt.value)
			if got := Load().Jobs.SnapshotHour; got != tt.want {
				t.Errorf("SNAPSHOT_HOUR=%q gave %d, want %d", tt.value, got, tt.want)
			}
		})
	}
}
