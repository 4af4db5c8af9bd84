package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultRelays is used when neither the site file nor the environment
// names any. Publishing to several relays is the whole durability story,
// so the default list has more than one.
var DefaultRelays = []string{
	"wss://relay.damus.io",
	"wss://nos.lol",
	"wss://relay.nostr.band",
}

// SiteFile is the per-site configuration file looked up in the working
// directory. Environment variables override anything it sets.
const SiteFile = "moss-social.yml"

// Config holds all configuration for the tools and the server.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	RedisURL    string
	DataDir     string

	// SiteURL is the canonical base URL of the published site.
	SiteURL string

	// Relays are the write/read relay endpoints.
	Relays []string

	// NostrKey is the site owner's secret key (nsec or hex). Only the
	// publish path needs it; readers and the server never do.
	NostrKey string

	// BridgeURL points visitors' sessions at a hosted signer, if any.
	BridgeURL string

	// Flags are feature toggles carried verbatim into the page data
	// block (e.g. "likes", "zaps").
	Flags map[string]bool

	// Rate limiting
	RateLimitWhitelist []string // IPs or CIDRs exempt from rate limiting
	AutoBlockEnabled   bool     // Enable auto-blocking after repeated violations
}

// siteFile mirrors the YAML layout of moss-social.yml.
type siteFile struct {
	SiteURL string          `yaml:"site_url"`
	Relays  []string        `yaml:"relays"`
	Flags   map[string]bool `yaml:"flags"`
}

// Load reads configuration from moss-social.yml (if present) and the
// environment, with the environment winning. In development it also loads
// a .env file if one exists.
func Load() (*Config, error) {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		DataDir:     getEnv("MOSS_DATA_DIR", "./data"),
		NostrKey:    os.Getenv("MOSS_NOSTR_KEY"),
		BridgeURL:   os.Getenv("MOSS_BRIDGE_URL"),

		AutoBlockEnabled:   getEnv("AUTO_BLOCK_ENABLED", "false") == "true",
		RateLimitWhitelist: splitList(os.Getenv("RATE_LIMIT_WHITELIST")),
	}

	if err := cfg.loadSiteFile(SiteFile); err != nil {
		return nil, err
	}

	if url := os.Getenv("MOSS_SITE_URL"); url != "" {
		cfg.SiteURL = url
	}
	if relays := splitList(os.Getenv("MOSS_RELAYS")); len(relays) > 0 {
		cfg.Relays = relays
	}
	if len(cfg.Relays) == 0 {
		cfg.Relays = append([]string(nil), DefaultRelays...)
	}

	// In production, require the external stores.
	if cfg.Env == "production" {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required in production")
		}
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required in production")
		}
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) loadSiteFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var sf siteFile
	if err := yaml.Unmarshal(raw, &sf); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	c.SiteURL = sf.SiteURL
	c.Relays = sf.Relays
	c.Flags = sf.Flags
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			out = append(out, entry)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
