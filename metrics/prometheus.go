package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/linchenxuan/kvutil/log"
)

const (
	_metricsChanSize    = 100000
	_defaultMetricPath  = "/metrics"
	_defaultPushJobName = "kvutil"
)

// metricType defines the type of Prometheus metric backing a record stream.
type metricType int

const (
	_metricTypeCounter metricType = iota
	_metricTypeGauge
	_metricTypeHistogram
)

// metricOpt contains naming options for creating Prometheus metrics.
type metricOpt struct {
	subsystem   string
	name        string
	constLabels map[string]string
}

// newMetricOpt creates metric options from a metric record and external labels.
func newMetricOpt(rc *Record, extLabels map[string]string) *metricOpt {
	opts := &metricOpt{
		subsystem:   strings.ReplaceAll(rc.Metrics().Group(), ".", "_"),
		name:        strings.ReplaceAll(rc.Metrics().Name(), ".", "_"),
		constLabels: make(map[string]string, len(rc.Dimensions())+len(extLabels)),
	}
	for k, v := range extLabels {
		opts.constLabels[k] = strings.ReplaceAll(v, ".", "_")
	}
	for k, v := range rc.Dimensions() {
		opts.constLabels[k] = strings.ReplaceAll(v, ".", "_")
	}
	return opts
}

// promGauge wraps a Prometheus gauge with value tracking for averaging
// policies.
type promGauge struct {
	prometheus.Gauge
	value float64 // Accumulated value for averaging
	cnt   int     // Count of observations
}

// merge updates the gauge value based on the metric policy.
func (p *promGauge) merge(rc *Record) error {
	switch rc.Metrics().Policy() {
	case Policy_Set, Policy_Max, Policy_Min:
		p.Set(float64(rc.Value()))
	case Policy_Sum:
		p.Add(float64(rc.Value()))
	case Policy_Avg, Policy_Stopwatch:
		v, c := rc.RawData()
		p.value += float64(v)
		p.cnt += c
		if p.cnt <= 0 {
			return fmt.Errorf("metrics(%s) count invalid", rc.Metrics().Name())
		}
		p.Set(p.value / float64(p.cnt))
	default:
		return fmt.Errorf("metrics(%s) policy invalid", rc.Metrics().Name())
	}
	return nil
}

// metricWrapper stores a created Prometheus metric along with its type so
// subsequent records for the same series can be merged into it.
type metricWrapper struct {
	m  prometheus.Metric
	mt metricType
}

// merge updates the wrapped metric with new record data.
func (m *metricWrapper) merge(rc *Record) {
	switch m.mt {
	case _metricTypeGauge:
		if g, ok := m.m.(*promGauge); ok && g != nil {
			if err := g.merge(rc); err != nil {
				log.Error().Err(err).Msg("prometheus merge")
			}
			return
		}
	case _metricTypeCounter:
		if c, ok := m.m.(prometheus.Counter); ok && c != nil {
			c.Add(float64(rc.Value()))
			return
		}
	case _metricTypeHistogram:
		if h, ok := m.m.(prometheus.Histogram); ok && h != nil {
			h.Observe(float64(rc.Value()))
			return
		}
	}
	log.Error().Str("promtype", fmt.Sprintf("%T", m.m)).
		Int("metrictype", int(m.mt)).Msg("prometheus merge failed")
}

// PrometheusReporterConfig contains configuration for the Prometheus reporter.
type PrometheusReporterConfig struct {
	UsePush         bool              `mapstructure:"usePush"`         // Enable push-gateway mode
	PushAddr        string            `mapstructure:"pushAddr"`        // Push gateway address
	PushIntervalSec int               `mapstructure:"pushIntervalSec"` // Push interval in seconds
	PushJobName     string            `mapstructure:"pushJobName"`     // Push job name
	HTTPListenAddr  string            `mapstructure:"httpListenAddr"`  // Scrape endpoint listen address, empty disables it
	MetricPath      string            `mapstructure:"metricPath"`      // Metrics HTTP path
	ExtLabels       map[string]string `mapstructure:"extLabels"`       // Labels attached to every metric
}

// PrometheusReporter converts facade records to Prometheus metrics and
// exposes them via an HTTP scrape endpoint, a push gateway, or both.
// Records are aggregated on a dedicated goroutine so the recording path
// never blocks on registry locks.
type PrometheusReporter struct {
	cfg         *PrometheusReporterConfig
	registry    *prometheus.Registry
	factory     promauto.Factory
	promSvr     *http.Server
	pusher      *push.Pusher
	metricsChan chan Record
	metrics     map[string]*metricWrapper
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewPrometheusReporter creates and starts a Prometheus reporter.
func NewPrometheusReporter(cfg *PrometheusReporterConfig) (*PrometheusReporter, error) {
	if cfg == nil {
		cfg = &PrometheusReporterConfig{}
	}
	if cfg.MetricPath == "" {
		cfg.MetricPath = _defaultMetricPath
	}
	if cfg.PushJobName == "" {
		cfg.PushJobName = _defaultPushJobName
	}
	if cfg.UsePush && cfg.PushAddr == "" {
		return nil, fmt.Errorf("prometheus reporter: push enabled without pushAddr")
	}

	ctx, cancel := context.WithCancel(context.Background())
	registry := prometheus.NewRegistry()
	p := &PrometheusReporter{
		cfg:         cfg,
		registry:    registry,
		factory:     promauto.With(registry),
		metricsChan: make(chan Record, _metricsChanSize),
		metrics:     map[string]*metricWrapper{},
		ctx:         ctx,
		cancel:      cancel,
	}

	p.startAggregate()
	if cfg.UsePush {
		p.startPusher()
	}
	if cfg.HTTPListenAddr != "" {
		p.startHTTPSvr()
	}
	return p, nil
}

// Report implements the Reporter interface. The record is queued for
// aggregation; if the queue is full the record is dropped rather than
// blocking the caller.
func (x *PrometheusReporter) Report(r Record) {
	select {
	case x.metricsChan <- r:
	default:
		log.Error().Msg("metrics chan full")
	}
}

// Registry exposes the reporter's private registry, mainly for tests and
// hosts mounting the scrape handler on their own mux.
func (x *PrometheusReporter) Registry() *prometheus.Registry {
	return x.registry
}

// seriesKey builds a stable identity for one metric series from its name and
// sorted dimension pairs.
func seriesKey(rc *Record) string {
	dims := rc.Dimensions()
	if len(dims) == 0 {
		return rc.Metrics().Group() + "/" + rc.Metrics().Name()
	}
	keys := make([]string, 0, len(dims))
	for k := range dims {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(rc.Metrics().Group())
	b.WriteByte('/')
	b.WriteString(rc.Metrics().Name())
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(dims[k])
	}
	return b.String()
}

// startAggregate launches the aggregation loop consuming queued records.
func (x *PrometheusReporter) startAggregate() {
	x.wg.Add(1)
	go func() {
		defer x.wg.Done()
		for {
			select {
			case rc := <-x.metricsChan:
				x.mergeRecord(&rc)
			case <-x.ctx.Done():
				return
			}
		}
	}()
}

// mergeRecord folds one record into its Prometheus series, creating the
// series on first sight.
func (x *PrometheusReporter) mergeRecord(rc *Record) {
	key := seriesKey(rc)
	if w, ok := x.metrics[key]; ok {
		w.merge(rc)
		return
	}

	o := newMetricOpt(rc, x.cfg.ExtLabels)
	var w *metricWrapper
	switch rc.Metrics().Policy() {
	case Policy_Sum:
		c := x.factory.NewCounter(prometheus.CounterOpts{
			Subsystem:   o.subsystem,
			Name:        o.name,
			ConstLabels: o.constLabels,
		})
		c.Add(float64(rc.Value()))
		w = &metricWrapper{m: c, mt: _metricTypeCounter}
	case Policy_Histogram:
		h := x.factory.NewHistogram(prometheus.HistogramOpts{
			Subsystem:   o.subsystem,
			Name:        o.name,
			ConstLabels: o.constLabels,
			Buckets:     prometheus.DefBuckets,
		})
		h.Observe(float64(rc.Value()))
		w = &metricWrapper{m: h, mt: _metricTypeHistogram}
	default:
		g := &promGauge{Gauge: x.factory.NewGauge(prometheus.GaugeOpts{
			Subsystem:   o.subsystem,
			Name:        o.name,
			ConstLabels: o.constLabels,
		})}
		if err := g.merge(rc); err != nil {
			log.Error().Err(err).Msg("prometheus merge")
		}
		w = &metricWrapper{m: g, mt: _metricTypeGauge}
	}
	x.metrics[key] = w
}

// startPusher launches the push-gateway loop.
func (x *PrometheusReporter) startPusher() {
	interval := time.Duration(x.cfg.PushIntervalSec) * time.Second
	if interval <= 0 {
		interval = 15 * time.Second
	}
	x.pusher = push.New(x.cfg.PushAddr, x.cfg.PushJobName).Gatherer(x.registry)

	x.wg.Add(1)
	go func() {
		defer x.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := x.pusher.Push(); err != nil {
					log.Error().Err(err).Str("addr", x.cfg.PushAddr).Msg("prometheus push")
				}
			case <-x.ctx.Done():
				return
			}
		}
	}()
}

// startHTTPSvr launches the scrape endpoint.
func (x *PrometheusReporter) startHTTPSvr() {
	mux := http.NewServeMux()
	mux.Handle(x.cfg.MetricPath, promhttp.HandlerFor(x.registry, promhttp.HandlerOpts{}))
	x.promSvr = &http.Server{Addr: x.cfg.HTTPListenAddr, Handler: mux}

	x.wg.Add(1)
	go func() {
		defer x.wg.Done()
		if err := x.promSvr.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Str("addr", x.cfg.HTTPListenAddr).Msg("prometheus http server")
		}
	}()
}

// Stop shuts down the reporter: the aggregation loop, the pusher, and the
// HTTP endpoint. Records reported after Stop are dropped.
func (x *PrometheusReporter) Stop() {
	x.cancel()
	if x.promSvr != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = x.promSvr.Shutdown(ctx)
	}
	x.wg.Wait()
}
