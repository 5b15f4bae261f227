package iolimit

import (
	"time"

	"github.com/linchenxuan/kvutil/metrics"
)

// MetricsSink receives one notification per request resolution plus ceiling
// updates. Implementations must be cheap and non-blocking; the dispatcher
// calls them outside the shard locks but on the hot path.
type MetricsSink interface {
	// OnGranted is called once per admitted request with the billed bytes
	// and how long the request waited (zero on the fast path).
	OnGranted(dir Direction, pri Priority, bytes int64, wait time.Duration)
	// OnTimedOut is called once per request whose deadline elapsed.
	OnTimedOut(dir Direction, pri Priority, bytes int64)
	// OnCancelled is called once per request withdrawn by its caller.
	OnCancelled(dir Direction, pri Priority, bytes int64)
	// OnCeilingUpdate is called whenever a direction's effective ceiling
	// changes, from reload or auto-tune.
	OnCeilingUpdate(dir Direction, bytesPerSec int64)
}

// facadeSink is the default sink; it forwards to the process metrics
// facade so any configured reporter picks the series up.
type facadeSink struct{}

func dims(dir Direction, pri Priority) metrics.Dimension {
	return metrics.Dimension{
		metrics.DimDirection: dir.String(),
		metrics.DimPriority:  pri.String(),
	}
}

func (facadeSink) OnGranted(dir Direction, pri Priority, bytes int64, wait time.Duration) {
	d := dims(dir, pri)
	metrics.IncrCounterWithDimGroup(metrics.NameIOGrantedBytesTotal, metrics.GroupKVUtil, metrics.Value(bytes), d)
	metrics.IncrCounterWithDimGroup(metrics.NameIOGrantedRequestsTotal, metrics.GroupKVUtil, 1, d)
	metrics.ObserveHistogramWithDimGroup(metrics.NameIOWaitDurationMS, metrics.GroupKVUtil,
		metrics.Value(wait.Milliseconds()), d)
}

func (facadeSink) OnTimedOut(dir Direction, pri Priority, bytes int64) {
	d := dims(dir, pri)
	metrics.IncrCounterWithDimGroup(metrics.NameIOTimedOutBytesTotal, metrics.GroupKVUtil, metrics.Value(bytes), d)
	metrics.IncrCounterWithDimGroup(metrics.NameIOTimedOutRequestsTotal, metrics.GroupKVUtil, 1, d)
}

func (facadeSink) OnCancelled(dir Direction, pri Priority, bytes int64) {
	metrics.IncrCounterWithDimGroup(metrics.NameIOCancelledRequestsTotal, metrics.GroupKVUtil, 1, dims(dir, pri))
}

func (facadeSink) OnCeilingUpdate(dir Direction, bytesPerSec int64) {
	metrics.UpdateGaugeWithDimGroup(metrics.NameIOEffectiveCeilingBytes, metrics.GroupKVUtil,
		metrics.Value(bytesPerSec), metrics.Dimension{metrics.DimDirection: dir.String()})
}

// nopSink discards every notification.
type nopSink struct{}

func (nopSink) OnGranted(Direction, Priority, int64, time.Duration) {}
func (nopSink) OnTimedOut(Direction, Priority, int64)               {}
func (nopSink) OnCancelled(Direction, Priority, int64)              {}
func (nopSink) OnCeilingUpdate(Direction, int64)                    {}
