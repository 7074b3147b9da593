package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every environment variable the config reads.
const EnvPrefix = "ASD_"

type Config struct {
	Log         LogConfig           `toml:"log" envPrefix:"LOG_"`
	Store       StoreConfig         `toml:"store" envPrefix:"STORE_"`
	Pricing     PricingConfig       `toml:"pricing" envPrefix:"PRICING_"`
	Marketplace MarketplaceConfig   `toml:"marketplace" envPrefix:"MARKETPLACE_"`
	Notify      NotifyConfig        `toml:"notify" envPrefix:"NOTIFY_"`
	Events      EventsConfig        `toml:"events" envPrefix:"EVENTS_"`
	Server      ServerConfig        `toml:"server" envPrefix:"SERVER_"`
	Export      ExportConfig        `toml:"export" envPrefix:"EXPORT_"`
	Delegation  map[string][]string `toml:"delegation"`
	Path        string              `toml:"-"`
}

type LogConfig struct {
	Level  string `toml:"level" env:"LEVEL"`
	Format string `toml:"format" env:"FORMAT"`
}

type StoreConfig struct {
	DBPath string `toml:"db_path" env:"DB_PATH"`
}

type PricingConfig struct {
	InventoryThreshold int      `toml:"inventory_threshold" env:"INVENTORY_THRESHOLD"`
	Discount           float64  `toml:"discount" env:"DISCOUNT"`
	Markup             float64  `toml:"markup" env:"MARKUP"`
	SentimentCacheTTL  Duration `toml:"sentiment_cache_ttl" env:"SENTIMENT_CACHE_TTL"`
}

type MarketplaceConfig struct {
	AccessKey  string `toml:"access_key" env:"ACCESS_KEY"`
	SecretKey  string `toml:"secret_key" env:"SECRET_KEY"`
	PartnerTag string `toml:"partner_tag" env:"PARTNER_TAG"`
	Country    string `toml:"country" env:"COUNTRY"`
}

type NotifyConfig struct {
	Enabled   bool   `toml:"enabled" env:"ENABLED"`
	Recipient string `toml:"recipient" env:"RECIPIENT"`
}

type EventsConfig struct {
	Buffer        int    `toml:"buffer" env:"BUFFER"`
	NATSURL       string `toml:"nats_url" env:"NATS_URL"`
	SubjectPrefix string `toml:"subject_prefix" env:"SUBJECT_PREFIX"`
}

type ServerConfig struct {
	Addr          string   `toml:"addr" env:"ADDR"`
	DrainInterval Duration `toml:"drain_interval" env:"DRAIN_INTERVAL"`
}

type ExportConfig struct {
	Root string `toml:"root" env:"ROOT"`
}

// Duration accepts Go duration strings such as "500ms" in TOML and env.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func Default() Config {
	return Config{
		Log:   LogConfig{Level: "info", Format: "console"},
		Store: StoreConfig{DBPath: "asd.db"},
		Pricing: PricingConfig{
			InventoryThreshold: 100,
			Discount:           0.9,
			Markup:             1.1,
			SentimentCacheTTL:  Duration{10 * time.Minute},
		},
		Marketplace: MarketplaceConfig{
			AccessKey:  "YOUR_ACCESS_KEY",
			SecretKey:  "YOUR_SECRET_KEY",
			PartnerTag: "YOUR_PARTNER_TAG",
			Country:    "US",
		},
		Notify: NotifyConfig{Enabled: true, Recipient: "operator@localhost"},
		Events: EventsConfig{Buffer: 64, SubjectPrefix: "asd.events"},
		Server: ServerConfig{Addr: ":8080", DrainInterval: Duration{time.Second}},
		Export: ExportConfig{Root: "exports"},
		Delegation: map[string][]string{
			"Product": {"Sales"},
		},
	}
}

// Load reads path over the defaults, then applies ASD_* environment
// variables. A missing file is not an error; an empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		resolved, err := expandHome(path)
		if err != nil {
			return Config{}, err
		}
		raw, err := os.ReadFile(resolved)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config file %s: %w", resolved, err)
		default:
			// A [delegation] table replaces the default rules instead of merging.
			defaults := cfg.Delegation
			cfg.Delegation = nil
			if _, err := toml.Decode(string(raw), &cfg); err != nil {
				return Config{}, fmt.Errorf("decode config file %s: %w", resolved, err)
			}
			if cfg.Delegation == nil {
				cfg.Delegation = defaults
			}
			cfg.Path = resolved
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}
	if strings.TrimSpace(c.Store.DBPath) == "" {
		errs = append(errs, errors.New("store.db_path is required"))
	}
	if c.Pricing.InventoryThreshold < 1 {
		errs = append(errs, fmt.Errorf("pricing.inventory_threshold must be at least 1, got %d", c.Pricing.InventoryThreshold))
	}
	if c.Pricing.Discount <= 0 || c.Pricing.Discount > 1 {
		errs = append(errs, fmt.Errorf("pricing.discount must be in (0, 1], got %v", c.Pricing.Discount))
	}
	if c.Pricing.Markup < 1 {
		errs = append(errs, fmt.Errorf("pricing.markup must be at least 1, got %v", c.Pricing.Markup))
	}
	if c.Events.Buffer < 1 {
		errs = append(errs, errors.New("events.buffer must be at least 1"))
	}
	if c.Server.DrainInterval.Duration <= 0 {
		errs = append(errs, errors.New("server.drain_interval must be positive"))
	}
	return errors.Join(errs...)
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return filepath.Clean(path), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	trimmed := strings.TrimPrefix(path, "~")
	trimmed = strings.TrimPrefix(trimmed, "\\")
	trimmed = strings.TrimPrefix(trimmed, "/")
	return filepath.Join(home, trimmed), nil
}
