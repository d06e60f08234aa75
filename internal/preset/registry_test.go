package preset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFile = `presets:
  conservative:
    description: Small account, tight risk
    account_size: 10000
    risk_percent: 0.5
    target_r_multiple: 2
    total_trade_cost: 5
  aggressive:
    account_size: 50000
    risk_percent: 2
    target_r_multiple: 3
    total_trade_cost: 7.5
`

func writePresets(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "presets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadPresets(t *testing.T) {
	r, err := NewRegistry(writePresets(t, sampleFile))
	require.NoError(t, err)

	snap := r.Snapshot()
	require.Len(t, snap.Presets, 2)
	assert.EqualValues(t, 1, snap.Version)

	p, ok := r.Preset("conservative")
	require.True(t, ok)
	assert.Equal(t, "Small account, tight risk", p.Description)
	assert.InDelta(t, 0.5, p.RiskPercent, 0)

	list := snap.List()
	require.Len(t, list, 2)
	assert.Equal(t, "aggressive", list[0].ID)
	assert.Equal(t, "conservative", list[1].ID)
}

func TestInvalidPresetsAreSkipped(t *testing.T) {
	r, err := NewRegistry(writePresets(t, `presets:
  good:
    account_size: 10000
    risk_percent: 1
    target_r_multiple: 2
    total_trade_cost: 5
  negative_size:
    account_size: -1
    risk_percent: 1
    target_r_multiple: 2
    total_trade_cost: 5
  missing_fields:
    account_size: 10000
  unknown_key:
    account_size: 10000
    risk_percent: 1
    target_r_multiple: 2
    total_trade_cost: 5
    leverage: 10
`))
	require.NoError(t, err)

	snap := r.Snapshot()
	require.Len(t, snap.Presets, 1)
	_, ok := snap.Presets["good"]
	assert.True(t, ok)
}

func TestPresetPatchFillsAllFields(t *testing.T) {
	r, err := NewRegistry(writePresets(t, sampleFile))
	require.NoError(t, err)

	p, ok := r.Preset("aggressive")
	require.True(t, ok)
	patch := p.Patch()
	require.NotNil(t, patch.AccountSize)
	require.NotNil(t, patch.RiskPercent)
	require.NotNil(t, patch.TargetRMultiple)
	require.NotNil(t, patch.TotalTradeCost)
	assert.Equal(t, "50000", patch.AccountSize.String())
	assert.Equal(t, "7.5", patch.TotalTradeCost.String())
}

func TestReloadBumpsVersion(t *testing.T) {
	path := writePresets(t, sampleFile)
	r, err := NewRegistry(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`presets:
  solo:
    account_size: 1000
    risk_percent: 1
    target_r_multiple: 2
    total_trade_cost: 1
`), 0o644))
	require.NoError(t, r.reload())

	snap := r.Snapshot()
	assert.EqualValues(t, 2, snap.Version)
	require.Len(t, snap.Presets, 1)
	_, ok := snap.Presets["solo"]
	assert.True(t, ok)
}

func TestMissingFileFails(t *testing.T) {
	_, err := NewRegistry(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
