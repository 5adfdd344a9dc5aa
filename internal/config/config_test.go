package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.InDelta(t, 100000.0, cfg.InitialCash, 1e-9)
	assert.Equal(t, "auto", cfg.PriceSource)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, cfg.MaxAllocationPct, 1e-9)
	assert.Equal(t, 5, cfg.LookforwardDays)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "initial_cash: 50000\nmax_allocation_pct: 0.25\nprice_source: stooq\nlog_level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 50000.0, cfg.InitialCash, 1e-9)
	assert.InDelta(t, 0.25, cfg.MaxAllocationPct, 1e-9)
	assert.Equal(t, "stooq", cfg.PriceSource)
	assert.Equal(t, "debug", cfg.LogLevel)
	// Untouched keys keep their defaults.
	assert.Equal(t, 3, cfg.ReflectionMaxRetries)
}

func TestEnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("initial_cash: 50000\n"), 0o644))

	t.Setenv("AGENTFOLIO_INITIAL_CASH", "75000")
	t.Setenv("AGENTFOLIO_PRICE_SOURCE", "yahoo")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 75000.0, cfg.InitialCash, 1e-9)
	assert.Equal(t, "yahoo", cfg.PriceSource)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("price_source: bloomberg\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("initial_cash: -5\n"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestPathHelpers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/tmp/agentfolio/data"
	cfg.ResultsDir = "/tmp/agentfolio/results"

	assert.Equal(t, "/tmp/agentfolio/data/account_state.json", cfg.AccountStatePath())
	assert.Equal(t, "/tmp/agentfolio/data/pending_reflections.json", cfg.QueuePath())
	assert.Equal(t, "/tmp/agentfolio/results/trade_log.csv", cfg.TradeLogPath())
	assert.Equal(t, "/tmp/agentfolio/data/lessons.db", cfg.LessonDBPath())
}
