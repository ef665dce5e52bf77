package strategy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPool = `strategies:
  - id: ema-1
    name: ema cross
    kind: ema_cross
    timeframe: 1h
    session: london
    params:
      fast_period: 12
      slow_period: 26
    exit:
      stop_loss_pct: 0.004
    payload: '{"generator":{"name":"genpool","seed":42,"created_at":"2026-05-01T00:00:00Z"}}'
  - id: rsi-1
    kind: rsi_reversal
    timeframe: 4h
`

func writePool(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strategies.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRegistryLoadsValidPool(t *testing.T) {
	r, err := NewRegistry(writePool(t, validPool))
	require.NoError(t, err)

	snap := r.Snapshot()
	assert.Equal(t, int64(1), snap.Version)
	require.Len(t, snap.Strategies, 2)

	def, ok := snap.Lookup("ema-1")
	require.True(t, ok)
	assert.Equal(t, KindEMACross, def.Kind)
	assert.Equal(t, 12.0, def.Param("fast_period", 0))
	assert.Equal(t, "genpool", def.Provenance.Generator)
	assert.Equal(t, int64(42), def.Provenance.Seed)

	_, ok = snap.Lookup("missing")
	assert.False(t, ok)
}

func TestRegistryRejectsUnknownKind(t *testing.T) {
	pool := `strategies:
  - id: bad-1
    kind: martingale
    timeframe: 1h
`
	_, err := NewRegistry(writePool(t, pool))
	assert.Error(t, err)
}

func TestRegistryRejectsMissingID(t *testing.T) {
	pool := `strategies:
  - kind: ema_cross
    timeframe: 1h
`
	_, err := NewRegistry(writePool(t, pool))
	assert.Error(t, err)
}

func TestRegistryRejectsDuplicateID(t *testing.T) {
	pool := `strategies:
  - id: dup
    kind: ema_cross
    timeframe: 1h
  - id: dup
    kind: sma_momentum
    timeframe: 1h
`
	_, err := NewRegistry(writePool(t, pool))
	assert.Error(t, err)
}

func TestRegistryRejectsUnknownField(t *testing.T) {
	pool := `strategies:
  - id: s-1
    kind: ema_cross
    timeframe: 1h
    leverage: 50
`
	_, err := NewRegistry(writePool(t, pool))
	assert.Error(t, err)
}

func TestRegistryRejectsExitOutOfBounds(t *testing.T) {
	pool := `strategies:
  - id: s-1
    kind: ema_cross
    timeframe: 1h
    exit:
      stop_loss_pct: 0.5
`
	_, err := NewRegistry(writePool(t, pool))
	assert.Error(t, err)
}

func TestParseProvenanceTolerant(t *testing.T) {
	assert.Equal(t, Provenance{}, parseProvenance(""))
	assert.Equal(t, Provenance{}, parseProvenance("not-json"))

	p := parseProvenance(`{"generator":{"name":"gp"}}`)
	assert.Equal(t, "gp", p.Generator)
	assert.Zero(t, p.Seed)
}
