package iolimit

import (
	"time"

	"github.com/linchenxuan/kvutil/log"
)

// saturationFraction is how close observed throughput must come to the
// current ceiling before the controller treats demand as ceiling-bound and
// raises toward the target.
const saturationFraction = 0.9

// AutoTuneController periodically retargets the limiter's per-direction
// ceilings from observed throughput. When demand saturates a ceiling it is
// raised toward TargetUtilization of the device estimate; when demand falls
// well below it the ceiling shrinks toward demand so bursts cannot ride an
// inflated allowance. Every step is EWMA-smoothed and a dispersion guard
// skips adjustment when recent samples disagree too much to trust.
type AutoTuneController struct {
	l *RateLimiter
}

func newAutoTuneController(l *RateLimiter) *AutoTuneController {
	return &AutoTuneController{l: l}
}

// adjust runs one control step at the given instant. No-op outside
// ModeAutoTuned.
func (c *AutoTuneController) adjust(now time.Time) {
	l := c.l
	cfg := l.cfg.Load()
	if cfg.Mode != ModeAutoTuned {
		return
	}
	at := cfg.AutoTune
	next := cfg.clone()
	changed := false

	for dir := 0; dir < numDirections; dir++ {
		d := Direction(dir)
		sampler := l.samplers[dir]
		sampler.Roll(now)
		mean, cv, n := sampler.Stats(at.SampleWindows)
		if n == 0 {
			continue
		}
		if at.MaxSampleVariance > 0 && cv > at.MaxSampleVariance {
			log.Debug().
				Str("direction", d.String()).
				Float64("cv", cv).
				Msg("iolimit autotune skipped, samples too dispersed")
			continue
		}

		current := cfg.ceiling(d)
		target := float64(at.DeviceBytesPerSec) * at.TargetUtilization
		var desired float64
		if mean >= float64(current)*saturationFraction {
			// Demand is ceiling-bound; open up toward the target.
			desired = target
		} else {
			// Demand is below the ceiling; track it so the allowance does
			// not stay inflated after a burst.
			desired = mean / at.TargetUtilization
		}
		tuned := int64(float64(current) + at.SmoothingFactor*(desired-float64(current)))
		tuned = clampCeiling(tuned, at.DeviceBytesPerSec)
		if tuned != current {
			next.setCeiling(d, tuned)
			changed = true
			log.Info().
				Str("direction", d.String()).
				Int64("observedBytesPerSec", int64(mean)).
				Int64("ceilingBytesPerSec", tuned).
				Msg("iolimit autotune adjusted ceiling")
		}
	}

	if changed {
		l.reloadMu.Lock()
		// Rebase onto the latest snapshot in case a reload landed between
		// the read above and now; only the ceilings carry over.
		base := l.cfg.Load().clone()
		base.ReadBytesPerSec = next.ReadBytesPerSec
		base.WriteBytesPerSec = next.WriteBytesPerSec
		if err := l.installLocked(base); err != nil {
			log.Error().Err(err).Msg("iolimit autotune install failed")
		}
		l.reloadMu.Unlock()
	}
}

// clampCeiling keeps a tuned ceiling within [device/64, device] so the
// controller can neither collapse throughput to zero nor exceed the device
// estimate.
func clampCeiling(v, device int64) int64 {
	floor := device / 64
	if floor < 1 {
		floor = 1
	}
	if v < floor {
		return floor
	}
	if v > device {
		return device
	}
	return v
}

// tuneRunner drives the controller on its worker goroutine.
type tuneRunner struct {
	c *AutoTuneController
}

func (r *tuneRunner) Run(struct{}) {
	r.c.adjust(r.c.l.clock.Now())
}

func (r *tuneRunner) OnTimeout() {
	r.c.adjust(r.c.l.clock.Now())
}

func (r *tuneRunner) TimerInterval() time.Duration {
	return r.c.l.cfg.Load().AutoTune.Interval
}
