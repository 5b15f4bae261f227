package iolimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linchenxuan/kvutil/config"
)

// The limiter plugs into the config manager as an ordinary reloader; a
// decoded section lands as a LimitUpdate overlay.
func TestConfigManagerDrivesLimiterReload(t *testing.T) {
	l, _ := newTestLimiter(t, testConfig())

	m := config.NewManager()
	require.NoError(t, m.Register("iolimit", l))

	err := m.Apply(map[string]any{
		"iolimit": map[string]any{
			"mode":            "static",
			"readbytespersec": int64(48000),
			"weights":         map[string]any{"high": int64(6)},
		},
	})
	require.NoError(t, err)

	st := l.Statistics()
	assert.Equal(t, int64(48000), st.Directions[DirectionRead].EffectiveCeilingBytesPerSec)
	assert.Equal(t, int64(3000), st.Directions[DirectionWrite].EffectiveCeilingBytesPerSec)

	cfg := l.cfg.Load()
	assert.Equal(t, int64(6), cfg.Weights[PriorityHigh])
	assert.Equal(t, cfg.Weights[PriorityLow], testConfig().Weights[PriorityLow])
}

// A section that merges into an invalid snapshot is rejected and the old
// snapshot stays live.
func TestConfigManagerRejectsBadSection(t *testing.T) {
	l, _ := newTestLimiter(t, testConfig())

	m := config.NewManager()
	require.NoError(t, m.Register("iolimit", l))

	err := m.Apply(map[string]any{
		"iolimit": map[string]any{
			"refillperiodms": int64(5000), // exceeds the one-second burst window
		},
	})
	require.Error(t, err)

	st := l.Statistics()
	assert.Equal(t, int64(3000), st.Directions[DirectionRead].EffectiveCeilingBytesPerSec)
}
