package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "asd.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Pricing, cfg.Pricing)
	assert.Equal(t, []string{"Sales"}, cfg.Delegation["Product"])
	assert.Empty(t, cfg.Path)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[log]
level = "debug"
format = "json"

[pricing]
inventory_threshold = 20
sentiment_cache_ttl = "90s"

[server]
drain_interval = "250ms"

[delegation]
Customer = ["Sales"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 20, cfg.Pricing.InventoryThreshold)
	assert.Equal(t, 0.9, cfg.Pricing.Discount)
	assert.Equal(t, 90*time.Second, cfg.Pricing.SentimentCacheTTL.Duration)
	assert.Equal(t, 250*time.Millisecond, cfg.Server.DrainInterval.Duration)
	assert.Equal(t, map[string][]string{"Customer": {"Sales"}}, cfg.Delegation)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "[store]\ndb_path = \"file.db\"\n")
	t.Setenv("ASD_STORE_DB_PATH", "env.db")
	t.Setenv("ASD_MARKETPLACE_COUNTRY", "DE")
	t.Setenv("ASD_EVENTS_NATS_URL", "nats://127.0.0.1:4222")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env.db", cfg.Store.DBPath)
	assert.Equal(t, "DE", cfg.Marketplace.Country)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.Events.NATSURL)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, "[pricing]\ndiscount = 1.5\nmarkup = 0.5\n[log]\nformat = \"xml\"\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pricing.discount")
	assert.Contains(t, err.Error(), "pricing.markup")
	assert.Contains(t, err.Error(), "log.format")
}

func TestLoadRejectsZeroInventoryThreshold(t *testing.T) {
	_, err := Load(writeConfig(t, "[pricing]\ninventory_threshold = 0\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pricing.inventory_threshold")
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	_, err := Load(writeConfig(t, "[pricing\n"))
	assert.Error(t, err)
}
