package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "LIFTPLAN_API_KEY", "CORS_ORIGINS", "DEFAULT_SHAFTS", "DEFAULT_FORMAT", "CACHE_TTL", "BOTTOM_UP"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	if cfg.Port != "8090" {
		t.Errorf("expected port %q, got %q", "8090", cfg.Port)
	}
	if cfg.DefaultShafts != 8 || cfg.DefaultFormat != "pdf" || !cfg.BottomUp {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.CacheTTL != 15*time.Minute {
		t.Errorf("expected cache ttl 15m, got %v", cfg.CacheTTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DEFAULT_SHAFTS", "16")
	t.Setenv("DEFAULT_FORMAT", "DOCX")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("CACHE_TTL", "-1s")
	t.Setenv("BOTTOM_UP", "false")
	cfg := Load()
	if cfg.DefaultShafts != 16 || cfg.DefaultFormat != "docx" || cfg.BottomUp {
		t.Errorf("unexpected overrides: %+v", cfg)
	}
	if diff := cmp.Diff([]string{"https://a.example", "https://b.example"}, cfg.CORSOrigins); diff != "" {
		t.Errorf("origins mismatch (-want +got):\n%s", diff)
	}
	if cfg.CacheTTL != 15*time.Minute {
		t.Errorf("expected non-positive ttl to fall back, got %v", cfg.CacheTTL)
	}
}

func TestValidate(t *testing.T) {
	cfg := Load()
	cfg.DefaultShafts = 100
	cfg.MaxShafts = 64
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when default shafts exceed max")
	}
	cfg = Load()
	cfg.DefaultFormat = "xlsx"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown format")
	}
}
