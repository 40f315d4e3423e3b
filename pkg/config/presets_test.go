package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meta-closure/zerot/pkg/contract"
)

func TestDefaultPresets_AllValid(t *testing.T) {
	presets := DefaultPresets()
	for _, layer := range []contract.Layer{contract.LayerPresentation, contract.LayerAction, contract.LayerBusiness, contract.LayerData} {
		policy, err := presets.Policy(string(layer))
		require.NoError(t, err, layer)
		assert.Equal(t, layer, policy.Layer)
	}

	data, err := presets.Policy("data")
	require.NoError(t, err)
	assert.Equal(t, 3, data.RetryAttempts)
	assert.Equal(t, []contract.Category{contract.CategoryNetwork}, data.RetryOn)
	require.IsType(t, contract.ExponentialBackoff{}, data.Backoff)
	assert.Equal(t, 50*time.Millisecond, data.Backoff.(contract.ExponentialBackoff).Base)
}

func TestPreset_PolicyRejectsUnknownNames(t *testing.T) {
	_, err := Preset{Layer: "service"}.Policy()
	assert.Error(t, err)

	_, err = Preset{Layer: "data", RetryOn: []string{"TIMEOUT"}}.Policy()
	assert.Error(t, err)

	_, err = Preset{Layer: "data", Backoff: &BackoffConfig{Kind: "linear"}}.Policy()
	assert.ErrorContains(t, err, "linear")

	_, err = DefaultPresets().Policy("missing")
	assert.ErrorContains(t, err, "unknown preset")
}

func TestLoadPresets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
presets:
  payments:
    layer: business
    retry_attempts: 2
    retry_delay_ms: 250
    retry_on: [NETWORK]
  data:
    layer: data
    retry_attempts: 0
`), 0o600))

	presets, err := LoadPresets(path)
	require.NoError(t, err)

	payments, err := presets.Policy("payments")
	require.NoError(t, err)
	assert.Equal(t, contract.LayerBusiness, payments.Layer)
	assert.Equal(t, 2, payments.RetryAttempts)
	assert.Equal(t, 250*time.Millisecond, payments.RetryDelay)

	data, err := presets.Policy("data")
	require.NoError(t, err)
	assert.Zero(t, data.RetryAttempts, "file overrides defaults")

	_, err = presets.Policy("action")
	assert.NoError(t, err, "defaults survive")
}

func TestLoadPresets_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadPresets(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "read presets")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("presets:\n  x:\n    layer: nowhere\n"), 0o600))
	_, err = LoadPresets(bad)
	assert.ErrorContains(t, err, `preset "x"`)

	empty, err := LoadPresets("")
	require.NoError(t, err)
	assert.Len(t, empty, 4)
}

func TestMarshalPresets_RoundTrip(t *testing.T) {
	out, err := MarshalPresets(DefaultPresets())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "p.yaml")
	require.NoError(t, os.WriteFile(path, out, 0o600))
	loaded, err := LoadPresets(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultPresets(), loaded)
}
