package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries every environment-driven setting the engine recognizes.
// Secrets have no fallback defaults; operational knobs do.
type Config struct {
	DatabaseURL string // required, postgres:// or postgresql:// only
	IngestToken string // required for the write path; empty makes /ingest answer 500
	Port        string

	// LLM provider. OPENROUTER_API_KEY wins over OPENAI_API_KEY; both empty
	// disables the adjudicator and the embedding tier.
	OpenRouterKey string
	OpenAIKey     string

	AllowedOrigins []string // exact-match CORS allow list

	RateLimitMax    int           // requests per window per IP
	RateLimitWindow time.Duration // sliding window size

	MaxAgeDays int // temporal gate: reports older than this are rejected

	RedisURL      string // optional; rate limit + LLM cache backing
	GazetteerPath string // optional curated-list JSON, hot reloaded
	GeoScope      string // "european" (default) or "nordic"
	SnapshotPath  string // optional URL-seen cache snapshot file

	FeedsPath    string        // optional feed roster JSON for the fetcher
	FeedInterval time.Duration // poll interval when the fetcher is enabled

	ReconcileInterval time.Duration // 0 leaves the sweep to the admin trigger

	// Candidate dedup thresholds for shadow evaluation. Both zero disables
	// the shadow path entirely.
	ShadowTauLow  float64
	ShadowTauHigh float64
}

// ShadowEnabled reports whether a candidate threshold pair was configured.
func (c *Config) ShadowEnabled() bool {
	return c.ShadowTauLow > 0 || c.ShadowTauHigh > 0
}

// Load reads the process environment into a validated Config.
// Missing optional keys fall back to safe defaults; malformed values error.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		IngestToken:   os.Getenv("INGEST_TOKEN"),
		Port:          getEnvOrDefault("PORT", "8080"),
		OpenRouterKey: os.Getenv("OPENROUTER_API_KEY"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		RedisURL:      os.Getenv("REDIS_URL"),
		GazetteerPath: os.Getenv("GAZETTEER_PATH"),
		GeoScope:      getEnvOrDefault("GEO_SCOPE", "european"),
		SnapshotPath:  os.Getenv("SNAPSHOT_PATH"),
		FeedsPath:     os.Getenv("FEEDS_PATH"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	if !strings.HasPrefix(cfg.DatabaseURL, "postgres://") && !strings.HasPrefix(cfg.DatabaseURL, "postgresql://") {
		return nil, fmt.Errorf("DATABASE_URL must use the postgres:// or postgresql:// scheme")
	}

	if cfg.GeoScope != "european" && cfg.GeoScope != "nordic" {
		return nil, fmt.Errorf("GEO_SCOPE must be \"european\" or \"nordic\", got %q", cfg.GeoScope)
	}

	for _, origin := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	var err error
	if cfg.RateLimitMax, err = intEnv("RATE_LIMIT_MAX_REQUESTS", 120); err != nil {
		return nil, err
	}
	if cfg.RateLimitWindow, err = durationEnv("RATE_LIMIT_WINDOW", time.Minute); err != nil {
		return nil, err
	}
	if cfg.MaxAgeDays, err = intEnv("MAX_AGE_DAYS", 60); err != nil {
		return nil, err
	}
	if cfg.MaxAgeDays <= 0 {
		return nil, fmt.Errorf("MAX_AGE_DAYS must be positive, got %d", cfg.MaxAgeDays)
	}
	if cfg.FeedInterval, err = durationEnv("FEED_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ReconcileInterval, err = durationEnv("RECONCILE_INTERVAL", 0); err != nil {
		return nil, err
	}

	if cfg.ShadowTauLow, err = floatEnv("SHADOW_TAU_LOW", 0); err != nil {
		return nil, err
	}
	if cfg.ShadowTauHigh, err = floatEnv("SHADOW_TAU_HIGH", 0); err != nil {
		return nil, err
	}
	if cfg.ShadowEnabled() {
		if cfg.ShadowTauLow <= 0 || cfg.ShadowTauHigh >= 1 || cfg.ShadowTauLow >= cfg.ShadowTauHigh {
			return nil, fmt.Errorf("shadow thresholds must satisfy 0 < SHADOW_TAU_LOW < SHADOW_TAU_HIGH < 1, got (%g, %g)",
				cfg.ShadowTauLow, cfg.ShadowTauHigh)
		}
	}

	return cfg, nil
}

// LLMKey returns the active provider key, preferring OpenRouter.
func (c *Config) LLMKey() (key string, openRouter bool) {
	if c.OpenRouterKey != "" {
		return c.OpenRouterKey, true
	}
	return c.OpenAIKey, false
}

func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, raw)
	}
	return n, nil
}

func floatEnv(key string, fallback float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got %q", key, raw)
	}
	return f, nil
}

// durationEnv accepts either a Go duration string ("90s", "2m") or a bare
// integer interpreted as seconds.
func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	if d, err := time.ParseDuration(raw); err == nil {
		if d <= 0 {
			return 0, fmt.Errorf("%s must be positive, got %q", key, raw)
		}
		return d, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second, nil
	}
	return 0, fmt.Errorf("%s must be a duration or seconds count, got %q", key, raw)
}
