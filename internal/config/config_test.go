package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "app:\n  env: prod\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, ":8780", cfg.App.HTTPAddr)
	assert.Equal(t, "local", cfg.App.DefaultUser)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, 3, cfg.Advisor.MaxRetries)
	assert.Equal(t, 300, cfg.Advisor.CacheTTLSeconds)
	assert.InDelta(t, 10000, cfg.Journal.AccountSize, 0)
	assert.InDelta(t, 1.0, cfg.Journal.RiskPercent, 0)
}

func TestLoadIncludeMerge(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "base.yaml", "journal:\n  account_size: 50000\n  risk_percent: 2\n")
	main := writeConfig(t, dir, "config.yaml", "include:\n  - base.yaml\njournal:\n  risk_percent: 0.5\n")

	cfg, err := Load(main)
	require.NoError(t, err)

	// The main file wins over its includes; untouched keys survive the merge.
	assert.InDelta(t, 50000, cfg.Journal.AccountSize, 0)
	assert.InDelta(t, 0.5, cfg.Journal.RiskPercent, 0)
}

func TestLoadExplicitZeroSurvivesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "journal:\n  total_trade_cost: 0\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Zero(t, cfg.Journal.TotalTradeCost)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "store:\n  backend: dynamo\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.backend")
}

func TestLoadRejectsBadJournalDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "journal:\n  risk_percent: 250\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "risk_percent")
}

func TestLoadAdvisorKeyFromEnv(t *testing.T) {
	t.Setenv("RISKBOOK_ADVISOR_KEY", "sk-from-env")
	path := writeConfig(t, t.TempDir(), "config.yaml", "advisor:\n  enabled: true\n  api_key: sk-from-file\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.Advisor.APIKey)
}
