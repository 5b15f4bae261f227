package iolimit

import (
	"errors"
	"fmt"
	"time"
)

// ErrConfigRejected is wrapped by every configuration validation failure.
// A rejected snapshot is never installed; the previous one stays in force.
var ErrConfigRejected = errors.New("iolimit: config rejected")

// AutoTuneConfig parameterizes the feedback controller that adjusts the
// effective ceiling in ModeAutoTuned.
type AutoTuneConfig struct {
	// DeviceBytesPerSec is the estimated sustainable device throughput per
	// direction. The tuned ceiling never exceeds it.
	DeviceBytesPerSec int64 `mapstructure:"devicebytespersec"`
	// TargetUtilization is the fraction of DeviceBytesPerSec the controller
	// steers toward when demand saturates the current ceiling. (0, 1].
	TargetUtilization float64 `mapstructure:"targetutilization"`
	// SmoothingFactor is the EWMA weight applied to each adjustment step.
	// Smaller values move the ceiling more slowly. (0, 1].
	SmoothingFactor float64 `mapstructure:"smoothingfactor"`
	// Interval is how often the controller re-evaluates the ceiling.
	Interval time.Duration `mapstructure:"interval"`
	// SampleWindows is how many recent throughput windows the controller
	// averages when judging demand.
	SampleWindows int `mapstructure:"samplewindows"`
	// MaxSampleVariance skips an adjustment when the coefficient of
	// variation across the sampled windows exceeds it. Zero disables the
	// guard.
	MaxSampleVariance float64 `mapstructure:"maxsamplevariance"`
}

// Config is one immutable limiter snapshot. Reload and auto-tune build a new
// Config, validate it, and swap the whole snapshot atomically; running code
// only ever reads a fully consistent snapshot.
type Config struct {
	// Mode selects disabled, static, or auto-tuned enforcement.
	Mode Mode
	// ReadBytesPerSec and WriteBytesPerSec are the per-direction ceilings.
	// In ModeAutoTuned they are the starting point for tuning.
	ReadBytesPerSec  int64
	WriteBytesPerSec int64
	// Weights splits each direction's ceiling across priorities. Every
	// weight must be at least 1 so no priority starves at the refill level.
	Weights [numPriorities]int64
	// RefillPeriod is the dispatch cycle interval. Takes effect when the
	// limiter is started.
	RefillPeriod time.Duration
	// BurstWindow sizes each bucket's capacity as rate * BurstWindow.
	BurstWindow time.Duration
	// AgingThreshold is how long a queued request may wait before it is
	// served ahead of fresher requests of any priority.
	AgingThreshold time.Duration
	// AutoTune configures the feedback controller; ignored outside
	// ModeAutoTuned.
	AutoTune AutoTuneConfig
}

// DefaultConfig returns a static-mode snapshot with conservative defaults:
// 1 GiB/s per direction, weights 3/2/1 high/medium/low, 50ms dispatch
// cycles, one-second bursts, and a one-second aging guard.
func DefaultConfig() *Config {
	return &Config{
		Mode:             ModeStatic,
		ReadBytesPerSec:  1 << 30,
		WriteBytesPerSec: 1 << 30,
		Weights:          [numPriorities]int64{PriorityLow: 1, PriorityMedium: 2, PriorityHigh: 3},
		RefillPeriod:     50 * time.Millisecond,
		BurstWindow:      time.Second,
		AgingThreshold:   time.Second,
		AutoTune: AutoTuneConfig{
			DeviceBytesPerSec: 2 << 30,
			TargetUtilization: 0.9,
			SmoothingFactor:   0.5,
			Interval:          10 * time.Second,
			SampleWindows:     5,
			MaxSampleVariance: 1.0,
		},
	}
}

// Validate reports whether the snapshot is internally consistent. Errors
// wrap ErrConfigRejected.
func (c *Config) Validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrConfigRejected, fmt.Sprintf(format, args...))
	}
	switch c.Mode {
	case ModeDisabled, ModeStatic, ModeAutoTuned:
	default:
		return fail("unknown mode %d", c.Mode)
	}
	if c.Mode == ModeDisabled {
		return nil
	}
	if c.ReadBytesPerSec <= 0 {
		return fail("readbytespersec must be positive, got %d", c.ReadBytesPerSec)
	}
	if c.WriteBytesPerSec <= 0 {
		return fail("writebytespersec must be positive, got %d", c.WriteBytesPerSec)
	}
	for p, w := range c.Weights {
		if w < 1 {
			return fail("weight for priority %s must be at least 1, got %d", Priority(p), w)
		}
	}
	if c.RefillPeriod <= 0 {
		return fail("refillperiod must be positive, got %v", c.RefillPeriod)
	}
	if c.BurstWindow < c.RefillPeriod {
		return fail("burstwindow %v must cover at least one refill period %v", c.BurstWindow, c.RefillPeriod)
	}
	if c.AgingThreshold <= 0 {
		return fail("agingthreshold must be positive, got %v", c.AgingThreshold)
	}
	if c.Mode == ModeAutoTuned {
		at := c.AutoTune
		if at.DeviceBytesPerSec <= 0 {
			return fail("autotune devicebytespersec must be positive, got %d", at.DeviceBytesPerSec)
		}
		if at.TargetUtilization <= 0 || at.TargetUtilization > 1 {
			return fail("autotune targetutilization must be in (0, 1], got %v", at.TargetUtilization)
		}
		if at.SmoothingFactor <= 0 || at.SmoothingFactor > 1 {
			return fail("autotune smoothingfactor must be in (0, 1], got %v", at.SmoothingFactor)
		}
		if at.Interval <= 0 {
			return fail("autotune interval must be positive, got %v", at.Interval)
		}
		if at.SampleWindows <= 0 {
			return fail("autotune samplewindows must be positive, got %d", at.SampleWindows)
		}
		if at.MaxSampleVariance < 0 {
			return fail("autotune maxsamplevariance must not be negative, got %v", at.MaxSampleVariance)
		}
	}
	return nil
}

func (c *Config) clone() *Config {
	cp := *c
	return &cp
}

// ceiling returns the configured ceiling for one direction.
func (c *Config) ceiling(dir Direction) int64 {
	if dir == DirectionRead {
		return c.ReadBytesPerSec
	}
	return c.WriteBytesPerSec
}

func (c *Config) setCeiling(dir Direction, v int64) {
	if dir == DirectionRead {
		c.ReadBytesPerSec = v
	} else {
		c.WriteBytesPerSec = v
	}
}

func (c *Config) weightSum() int64 {
	var sum int64
	for _, w := range c.Weights {
		sum += w
	}
	return sum
}

// bucketRate is one bucket's weighted share of its direction ceiling in
// bytes per second, never below 1.
func (c *Config) bucketRate(dir Direction, pri Priority) int64 {
	r := c.ceiling(dir) * c.Weights[pri] / c.weightSum()
	if r < 1 {
		r = 1
	}
	return r
}

// bucketCapacity is the burst allowance of one bucket, never below 1.
func (c *Config) bucketCapacity(dir Direction, pri Priority) int64 {
	cap := int64(float64(c.bucketRate(dir, pri)) * c.BurstWindow.Seconds())
	if cap < 1 {
		cap = 1
	}
	return cap
}

// tickCredit is the refill one bucket earns per dispatch cycle.
func (c *Config) tickCredit(dir Direction, pri Priority) int64 {
	credit := int64(float64(c.bucketRate(dir, pri)) * c.RefillPeriod.Seconds())
	if credit < 1 {
		credit = 1
	}
	return credit
}

// LimitUpdate is the wire form of a limiter reconfiguration as decoded from
// a configuration section. Zero-valued fields keep their current setting, so
// an operator can flip the mode or retarget one ceiling without restating
// the whole snapshot.
type LimitUpdate struct {
	Mode              string           `mapstructure:"mode"`
	ReadBytesPerSec   int64            `mapstructure:"readbytespersec"`
	WriteBytesPerSec  int64            `mapstructure:"writebytespersec"`
	Weights           map[string]int64 `mapstructure:"weights"`
	RefillPeriodMS    int64            `mapstructure:"refillperiodms"`
	BurstWindowMS     int64            `mapstructure:"burstwindowms"`
	AgingThresholdMS  int64            `mapstructure:"agingthresholdms"`
	DeviceBytesPerSec int64            `mapstructure:"devicebytespersec"`
	TargetUtilization float64          `mapstructure:"targetutilization"`
	SmoothingFactor   float64          `mapstructure:"smoothingfactor"`
	AutoTuneIntervalS int64            `mapstructure:"autotuneintervals"`
}

// apply overlays the update onto a copy of base and returns the merged
// snapshot. Unknown mode or priority names fail the whole update so a typo
// cannot silently change enforcement; the result is not yet validated.
func (u *LimitUpdate) apply(base *Config) (*Config, error) {
	cfg := base.clone()
	if u.Mode != "" {
		m, ok := ParseMode(u.Mode)
		if !ok {
			return nil, fmt.Errorf("%w: unknown mode %q", ErrConfigRejected, u.Mode)
		}
		cfg.Mode = m
	}
	if u.ReadBytesPerSec > 0 {
		cfg.ReadBytesPerSec = u.ReadBytesPerSec
	}
	if u.WriteBytesPerSec > 0 {
		cfg.WriteBytesPerSec = u.WriteBytesPerSec
	}
	for name, w := range u.Weights {
		p, ok := ParsePriority(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown priority %q in weights", ErrConfigRejected, name)
		}
		cfg.Weights[p] = w
	}
	if u.RefillPeriodMS > 0 {
		cfg.RefillPeriod = time.Duration(u.RefillPeriodMS) * time.Millisecond
	}
	if u.BurstWindowMS > 0 {
		cfg.BurstWindow = time.Duration(u.BurstWindowMS) * time.Millisecond
	}
	if u.AgingThresholdMS > 0 {
		cfg.AgingThreshold = time.Duration(u.AgingThresholdMS) * time.Millisecond
	}
	if u.DeviceBytesPerSec > 0 {
		cfg.AutoTune.DeviceBytesPerSec = u.DeviceBytesPerSec
	}
	if u.TargetUtilization > 0 {
		cfg.AutoTune.TargetUtilization = u.TargetUtilization
	}
	if u.SmoothingFactor > 0 {
		cfg.AutoTune.SmoothingFactor = u.SmoothingFactor
	}
	if u.AutoTuneIntervalS > 0 {
		cfg.AutoTune.Interval = time.Duration(u.AutoTuneIntervalS) * time.Second
	}
	return cfg, nil
}
