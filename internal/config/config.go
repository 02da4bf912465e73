package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/liftplan/internal/render"
)

type Config struct {
	Port string

	// Auth; empty disables bearer auth.
	APIKey string

	// CORS
	CORSOrigins []string

	// Upload limits
	MaxUploadBytes int64
	MaxPicks       int

	// Loom
	DefaultShafts int
	MaxShafts     int

	// Rendering
	DefaultFormat string
	BottomUp      bool
	PDFCompress   bool

	// Document cache
	CacheTTL        time.Duration
	CacheMaxEntries int
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("LIFTPLAN_API_KEY"),

		CORSOrigins: envList("CORS_ORIGINS", []string{"*"}),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 5242880), // 5MB
		MaxPicks:       envInt("MAX_PICKS", 100000),

		DefaultShafts: envInt("DEFAULT_SHAFTS", 8),
		MaxShafts:     envInt("MAX_SHAFTS", 64),

		DefaultFormat: strings.ToLower(envOr("DEFAULT_FORMAT", "pdf")),
		BottomUp:      envBool("BOTTOM_UP", true),
		PDFCompress:   envBool("PDF_COMPRESS", true),

		CacheTTL:        envDuration("CACHE_TTL", 15*time.Minute),
		CacheMaxEntries: envInt("CACHE_MAX_ENTRIES", 256),
	}

	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 5242880
	}
	if cfg.MaxPicks <= 0 {
		cfg.MaxPicks = 100000
	}
	if cfg.DefaultShafts <= 0 {
		cfg.DefaultShafts = 8
	}
	if cfg.MaxShafts <= 0 {
		cfg.MaxShafts = 64
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 15 * time.Minute
	}
	if cfg.CacheMaxEntries <= 0 {
		cfg.CacheMaxEntries = 256
	}

	return cfg
}

func (c Config) Validate() error {
	if c.DefaultShafts > c.MaxShafts {
		return fmt.Errorf("DEFAULT_SHAFTS (%d) exceeds MAX_SHAFTS (%d)", c.DefaultShafts, c.MaxShafts)
	}
	if _, err := render.ForFormat(c.DefaultFormat, render.Options{}); err != nil {
		return fmt.Errorf("DEFAULT_FORMAT: %w", err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
