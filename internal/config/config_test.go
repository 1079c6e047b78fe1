package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"ENV", "PORT", "MODE", "PROVIDERS_FILE", "STUB_PROVIDERS", "PLACEHOLDER_TIMEOUT", "EVENTS_TTL", "EVENTS_LOOKAHEAD_DAYS", "WORKER_CONCURRENCY", "READY_CHANNEL", "DEACTIVATE_SCHEDULE"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Env != "development" || cfg.Port != "8080" || cfg.Mode != ModeEmbedded {
		t.Errorf("basic defaults = %+v", cfg)
	}
	if cfg.PlaceholderTimeout != 2*time.Minute {
		t.Errorf("PlaceholderTimeout = %v", cfg.PlaceholderTimeout)
	}
	if cfg.EventsTTL != 4*time.Hour || cfg.EventsLookaheadDays != 7 {
		t.Errorf("events defaults = %v, %d", cfg.EventsTTL, cfg.EventsLookaheadDays)
	}
	if cfg.DeactivateSchedule != "15 3 * * *" || cfg.ReadyChannel != "briefing:ready" {
		t.Errorf("schedule/channel = %q, %q", cfg.DeactivateSchedule, cfg.ReadyChannel)
	}
	if !cfg.StubProviders {
		t.Error("missing PROVIDERS_FILE should fall back to stub providers")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MODE", "Worker")
	t.Setenv("PROVIDERS_FILE", "/etc/localbrief/providers.yaml")
	t.Setenv("STUB_PROVIDERS", "false")
	t.Setenv("PLACEHOLDER_TIMEOUT", "90s")
	t.Setenv("EVENTS_LOOKAHEAD_DAYS", "3")
	t.Setenv("WORKER_CONCURRENCY", "12")

	cfg := Load()

	if cfg.Mode != ModeWorker {
		t.Errorf("Mode = %q", cfg.Mode)
	}
	if cfg.StubProviders {
		t.Error("StubProviders should stay off when a chain file is configured")
	}
	if cfg.PlaceholderTimeout != 90*time.Second || cfg.EventsLookaheadDays != 3 || cfg.WorkerConcurrency != 12 {
		t.Errorf("overrides = %v, %d, %d", cfg.PlaceholderTimeout, cfg.EventsLookaheadDays, cfg.WorkerConcurrency)
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("MODE", "sideways")
	t.Setenv("PLACEHOLDER_TIMEOUT", "soon")
	t.Setenv("EVENTS_LOOKAHEAD_DAYS", "many")
	t.Setenv("STUB_PROVIDERS", "maybe")
	t.Setenv("PROVIDERS_FILE", "providers.yaml")

	cfg := Load()

	if cfg.Mode != ModeEmbedded {
		t.Errorf("Mode = %q, want embedded", cfg.Mode)
	}
	if cfg.PlaceholderTimeout != 2*time.Minute || cfg.EventsLookaheadDays != 7 || cfg.StubProviders {
		t.Errorf("fallbacks = %v, %d, %v", cfg.PlaceholderTimeout, cfg.EventsLookaheadDays, cfg.StubProviders)
	}
}
