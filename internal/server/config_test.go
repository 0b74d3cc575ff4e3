package server

import (
	"testing"
	"time"
)

// TestDefaultConfig verifies the defaults applied when no configuration is
// provided.
func TestDefaultConfig(t *testing.T) {
	SetConfig(nil)
	t.Cleanup(func() { SetConfig(nil) })

	cfg := currentConfig()
	if cfg.Port != ":8080" {
		t.Errorf("Expected default port :8080, got %q", cfg.Port)
	}
	if cfg.PublicBaseURL != "http://localhost:8080" {
		t.Errorf("Expected default base URL, got %q", cfg.PublicBaseURL)
	}
	if cfg.DatabasePath != "chatrelay.db" {
		t.Errorf("Expected default database path, got %q", cfg.DatabasePath)
	}
	if cfg.MaxMessageSize != 4096 {
		t.Errorf("Expected default max message size 4096, got %d", cfg.MaxMessageSize)
	}
	if cfg.RateLimit.Burst != 5 || cfg.RateLimit.RefillInterval != time.Second {
		t.Errorf("Unexpected default rate limit: %+v", cfg.RateLimit)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("Expected default shutdown timeout 10s, got %v", cfg.ShutdownTimeout)
	}
}

// TestSanitizeConfig verifies that invalid values fall back to defaults and
// that the base URL loses its trailing slash.
func TestSanitizeConfig(t *testing.T) {
	SetConfig(&Config{
		Port:           "",
		PublicBaseURL:  "https://chat.example.com/",
		MaxMessageSize: -1,
		RateLimit:      RateLimitConfig{Burst: 0, RefillInterval: 0},
	})
	t.Cleanup(func() { SetConfig(nil) })

	cfg := currentConfig()
	if cfg.Port != ":8080" {
		t.Errorf("Expected fallback port, got %q", cfg.Port)
	}
	if cfg.PublicBaseURL != "https://chat.example.com" {
		t.Errorf("Expected trailing slash trimmed, got %q", cfg.PublicBaseURL)
	}
	if cfg.MaxMessageSize != 4096 {
		t.Errorf("Expected fallback max message size, got %d", cfg.MaxMessageSize)
	}
	if cfg.RateLimit.Burst != 5 || cfg.RateLimit.RefillInterval != time.Second {
		t.Errorf("Expected fallback rate limit, got %+v", cfg.RateLimit)
	}
}

// TestParseOrigins verifies comma splitting and whitespace trimming.
func TestParseOrigins(t *testing.T) {
	origins := ParseOrigins("http://a.example, http://b.example ,http://c.example")
	if len(origins) != 3 {
		t.Fatalf("Expected 3 origins, got %d", len(origins))
	}
	want := []string{"http://a.example", "http://b.example", "http://c.example"}
	for i, origin := range origins {
		if origin != want[i] {
			t.Errorf("Origin %d: expected %q, got %q", i, want[i], origin)
		}
	}
}

// TestNormalizeOrigins verifies wildcard handling and rejection of malformed
// entries.
func TestNormalizeOrigins(t *testing.T) {
	normalized, allowAll := normalizeOrigins([]string{"HTTP://Example.COM", "*", "not a url", ""})
	if !allowAll {
		t.Error("Expected wildcard to enable allow-all")
	}
	if len(normalized) != 1 || normalized[0] != "http://example.com" {
		t.Errorf("Unexpected normalized origins: %v", normalized)
	}
}
