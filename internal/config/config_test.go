package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "LOG_LEVEL", "SESSION_TTL", "SESSION_HISTORY_LIMIT", "PHRASING_PROVIDER", "RATE_LIMIT_RPS"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Fatalf("expected 24h session ttl, got %s", cfg.SessionTTL)
	}
	if cfg.SessionHistoryLimit != 20 {
		t.Fatalf("expected history limit 20, got %d", cfg.SessionHistoryLimit)
	}
	if cfg.PhrasingProvider != "none" {
		t.Fatalf("expected phrasing disabled by default, got %s", cfg.PhrasingProvider)
	}
	if cfg.RateLimitRPS != 5 {
		t.Fatalf("expected default rate limit 5, got %v", cfg.RateLimitRPS)
	}
	if cfg.IsProduction() {
		t.Fatalf("development config reported as production")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "Production")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("SESSION_HISTORY_LIMIT", "8")
	t.Setenv("PHRASING_PROVIDER", " Gemini ")
	t.Setenv("PHRASING_TIMEOUT", "3s")
	t.Setenv("USE_MEMORY_QUEUE", "true")
	t.Setenv("RATE_LIMIT_RPS", "0.5")
	t.Setenv("PERSIST_TRANSCRIPTS", "1")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if !cfg.IsProduction() {
		t.Fatalf("expected production env")
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.SessionTTL != 2*time.Hour || cfg.SessionHistoryLimit != 8 {
		t.Fatalf("unexpected session settings: %s / %d", cfg.SessionTTL, cfg.SessionHistoryLimit)
	}
	if cfg.PhrasingProvider != "gemini" || cfg.PhrasingTimeout != 3*time.Second {
		t.Fatalf("unexpected phrasing settings: %s / %s", cfg.PhrasingProvider, cfg.PhrasingTimeout)
	}
	if !cfg.UseMemoryQueue || !cfg.PersistTranscripts {
		t.Fatalf("expected boolean overrides to apply")
	}
	if cfg.RateLimitRPS != 0.5 {
		t.Fatalf("expected rate limit override, got %v", cfg.RateLimitRPS)
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("SESSION_TTL", "forever")
	t.Setenv("WORKER_COUNT", "many")
	cfg := Load()
	if cfg.SessionTTL != 24*time.Hour {
		t.Fatalf("expected default ttl for malformed value, got %s", cfg.SessionTTL)
	}
	if cfg.WorkerCount != 2 {
		t.Fatalf("expected default worker count, got %d", cfg.WorkerCount)
	}
}
