// Package config loads service configuration from the environment (and an
// optional .env file).
package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"watch-reward-system/eligibility"
)

// Config holds all service configuration.
type Config struct {
	DatabaseURL    string
	ListenAddr     string
	ServiceToken   string // bearer token the gateway presents
	AllowedOrigins []string

	Window WindowConfig
	Sync   SyncConfig
	Auth   AuthConfig
	R2     R2Config
}

// WindowConfig is the eligibility reset window.
type WindowConfig struct {
	Length   time.Duration
	Location *time.Location
}

// SyncConfig points at the admin catalog service we mirror videos from.
type SyncConfig struct {
	BaseURL  string
	Path     string
	Interval time.Duration
}

// AuthConfig points at the auth service used for SSE query-token validation.
type AuthConfig struct {
	BaseURL string
	Token   string
}

// R2Config holds Cloudflare R2 credentials for presigned media URLs.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	CDNBaseURL      string
	URLTTL          time.Duration
}

// Enabled reports whether R2 media resolution can be configured.
func (c R2Config) Enabled() bool {
	return c.AccountID != "" && c.AccessKeyID != "" && c.AccessKeySecret != "" && c.Bucket != ""
}

// Policy builds the eligibility policy for this configuration.
func (c Config) Policy() (eligibility.Policy, error) {
	return eligibility.NewPolicy(c.Window.Length, c.Window.Location)
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		DatabaseURL:    get("DATABASE_URL", ""),
		ListenAddr:     get("LISTEN_ADDR", ":5200"),
		ServiceToken:   get("SERVICE_TOKEN", ""),
		AllowedOrigins: splitOrigins(get("ALLOWED_ORIGINS", "http://localhost:3000")),
		Sync: SyncConfig{
			BaseURL: get("CATALOG_SYNC_URL", ""),
			Path:    get("CATALOG_SYNC_PATH", "/api/v1/public/videos"),
		},
		Auth: AuthConfig{
			BaseURL: get("AUTH_SERVICE_URL", ""),
			Token:   get("AUTH_SERVICE_TOKEN", ""),
		},
		R2: R2Config{
			AccountID:       get("CLOUDFLARE_ACCOUNT_ID", ""),
			AccessKeyID:     get("R2_ACCESS_KEY_ID", ""),
			AccessKeySecret: get("R2_ACCESS_KEY_SECRET", ""),
			Bucket:          get("R2_BUCKET_NAME", ""),
			CDNBaseURL:      get("CDN_BASE_URL", ""),
		},
	}

	var err error
	if cfg.Window.Length, err = time.ParseDuration(get("WATCH_WINDOW", "24h")); err != nil {
		return Config{}, fmt.Errorf("invalid WATCH_WINDOW: %w", err)
	}
	if cfg.Window.Location, err = time.LoadLocation(get("WATCH_WINDOW_TZ", "UTC")); err != nil {
		return Config{}, fmt.Errorf("invalid WATCH_WINDOW_TZ: %w", err)
	}
	if _, err := cfg.Policy(); err != nil {
		return Config{}, fmt.Errorf("invalid WATCH_WINDOW: %w", err)
	}
	if cfg.Sync.Interval, err = time.ParseDuration(get("CATALOG_SYNC_INTERVAL", "1m")); err != nil {
		return Config{}, fmt.Errorf("invalid CATALOG_SYNC_INTERVAL: %w", err)
	}
	if cfg.R2.URLTTL, err = time.ParseDuration(get("MEDIA_URL_TTL", "1h")); err != nil {
		return Config{}, fmt.Errorf("invalid MEDIA_URL_TTL: %w", err)
	}

	return cfg, nil
}

// ValidateServe checks the settings `serve` cannot run without.
func (c Config) ValidateServe() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable not set")
	}
	if c.ServiceToken == "" {
		return fmt.Errorf("SERVICE_TOKEN environment variable not set")
	}
	return nil
}

// Split the comma-separated origins and trim spaces from each
func splitOrigins(raw string) []string {
	var out []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}
