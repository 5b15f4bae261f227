package iolimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero read ceiling", func(c *Config) { c.ReadBytesPerSec = 0 }},
		{"negative write ceiling", func(c *Config) { c.WriteBytesPerSec = -1 }},
		{"zero weight", func(c *Config) { c.Weights[PriorityLow] = 0 }},
		{"zero refill period", func(c *Config) { c.RefillPeriod = 0 }},
		{"burst below refill", func(c *Config) { c.BurstWindow = c.RefillPeriod / 2 }},
		{"zero aging threshold", func(c *Config) { c.AgingThreshold = 0 }},
		{"bad mode", func(c *Config) { c.Mode = Mode(42) }},
		{"autotune zero device", func(c *Config) { c.Mode = ModeAutoTuned; c.AutoTune.DeviceBytesPerSec = 0 }},
		{"autotune utilization above one", func(c *Config) { c.Mode = ModeAutoTuned; c.AutoTune.TargetUtilization = 1.5 }},
		{"autotune zero smoothing", func(c *Config) { c.Mode = ModeAutoTuned; c.AutoTune.SmoothingFactor = 0 }},
		{"autotune zero interval", func(c *Config) { c.Mode = ModeAutoTuned; c.AutoTune.Interval = 0 }},
		{"autotune zero sample windows", func(c *Config) { c.Mode = ModeAutoTuned; c.AutoTune.SampleWindows = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfigRejected)
		})
	}
}

func TestDisabledModeSkipsRateValidation(t *testing.T) {
	cfg := &Config{Mode: ModeDisabled}
	assert.NoError(t, cfg.Validate())
}

func TestBucketShares(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReadBytesPerSec = 6000
	cfg.Weights = [numPriorities]int64{PriorityLow: 1, PriorityMedium: 2, PriorityHigh: 3}
	cfg.BurstWindow = time.Second

	assert.Equal(t, int64(1000), cfg.bucketRate(DirectionRead, PriorityLow))
	assert.Equal(t, int64(2000), cfg.bucketRate(DirectionRead, PriorityMedium))
	assert.Equal(t, int64(3000), cfg.bucketRate(DirectionRead, PriorityHigh))
	assert.Equal(t, int64(3000), cfg.bucketCapacity(DirectionRead, PriorityHigh))

	cfg.RefillPeriod = 50 * time.Millisecond
	assert.Equal(t, int64(150), cfg.tickCredit(DirectionRead, PriorityHigh))
}

func TestBucketShareNeverZero(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReadBytesPerSec = 1
	assert.GreaterOrEqual(t, cfg.bucketRate(DirectionRead, PriorityLow), int64(1))
	assert.GreaterOrEqual(t, cfg.bucketCapacity(DirectionRead, PriorityLow), int64(1))
	assert.GreaterOrEqual(t, cfg.tickCredit(DirectionRead, PriorityLow), int64(1))
}

func TestLimitUpdateOverlay(t *testing.T) {
	base := DefaultConfig()
	u := &LimitUpdate{
		Mode:             "autotuned",
		ReadBytesPerSec:  4096,
		Weights:          map[string]int64{"high": 5},
		RefillPeriodMS:   20,
		AgingThresholdMS: 250,
	}
	cfg, err := u.apply(base)
	require.NoError(t, err)

	assert.Equal(t, ModeAutoTuned, cfg.Mode)
	assert.Equal(t, int64(4096), cfg.ReadBytesPerSec)
	assert.Equal(t, base.WriteBytesPerSec, cfg.WriteBytesPerSec, "untouched fields persist")
	assert.Equal(t, int64(5), cfg.Weights[PriorityHigh])
	assert.Equal(t, base.Weights[PriorityLow], cfg.Weights[PriorityLow])
	assert.Equal(t, 20*time.Millisecond, cfg.RefillPeriod)
	assert.Equal(t, 250*time.Millisecond, cfg.AgingThreshold)

	// The base snapshot must not be mutated.
	assert.Equal(t, ModeStatic, base.Mode)
}

func TestParseHelpers(t *testing.T) {
	m, ok := ParseMode("Static")
	assert.True(t, ok)
	assert.Equal(t, ModeStatic, m)
	m, ok = ParseMode("auto-tuned")
	assert.True(t, ok)
	assert.Equal(t, ModeAutoTuned, m)
	_, ok = ParseMode("bogus")
	assert.False(t, ok)

	p, ok := ParsePriority("HIGH")
	assert.True(t, ok)
	assert.Equal(t, PriorityHigh, p)
	p, ok = ParsePriority("medium")
	assert.True(t, ok)
	assert.Equal(t, PriorityMedium, p)
	_, ok = ParsePriority("anything")
	assert.False(t, ok)
}

// A typo in the mode or a weight key must fail the whole overlay instead of
// being coerced to a default; coercing "statc" to disabled would turn all
// throttling off.
func TestLimitUpdateRejectsUnknownNames(t *testing.T) {
	base := DefaultConfig()

	_, err := (&LimitUpdate{Mode: "statc"}).apply(base)
	require.ErrorIs(t, err, ErrConfigRejected)

	_, err = (&LimitUpdate{Weights: map[string]int64{"hgih": 5}}).apply(base)
	require.ErrorIs(t, err, ErrConfigRejected)
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "read", DirectionRead.String())
	assert.Equal(t, "write", DirectionWrite.String())
	assert.Equal(t, "high", PriorityHigh.String())
	assert.Equal(t, "autotuned", ModeAutoTuned.String())
	assert.Equal(t, "granted", OutcomeGranted.String())
	assert.Equal(t, "timedout", OutcomeTimedOut.String())
	assert.Equal(t, "cancelled", OutcomeCancelled.String())
}
