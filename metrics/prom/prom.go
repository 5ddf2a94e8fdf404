// Package prom exports streamer metrics to Prometheus.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/tilestream/streamer"
)

// Adapter implements streamer.Metrics and exports Prometheus counters,
// gauges and a decode-latency histogram. Safe for concurrent use.
type Adapter struct {
	hits       prometheus.Counter
	misses     prometheus.Counter
	evicts     *prometheus.CounterVec
	sizeEnt    prometheus.Gauge
	sizeBytes  prometheus.Gauge
	decodes    *prometheus.CounterVec
	decodeTime prometheus.Histogram
	queueDepth prometheus.Gauge
	inFlight   prometheus.Gauge
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: name, Help: help, ConstLabels: constLabels,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: name, Help: help, ConstLabels: constLabels,
		})
	}
	a := &Adapter{
		hits:   counter("hits_total", "Tier requests served from the texture cache"),
		misses: counter("misses_total", "Tier requests that needed a decode"),
		evicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "evictions_total",
				Help:        "Texture evictions by reason",
				ConstLabels: constLabels,
			},
			[]string{"reason"},
		),
		sizeEnt:   gauge("size_entries", "Resident decoded textures"),
		sizeBytes: gauge("size_bytes", "Resident decoded bytes"),
		decodes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "decodes_total",
				Help:        "Decode tasks by result",
				ConstLabels: constLabels,
			},
			[]string{"result"},
		),
		decodeTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "decode_seconds",
			Help:        "Fetch+decode latency of finished tasks",
			Buckets:     prometheus.ExponentialBuckets(0.001, 2, 14),
			ConstLabels: constLabels,
		}),
		queueDepth: gauge("queue_depth", "Decode tasks waiting for a worker"),
		inFlight:   gauge("in_flight", "Decode tasks running"),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.sizeEnt, a.sizeBytes,
		a.decodes, a.decodeTime, a.queueDepth, a.inFlight)
	return a
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Evict increments the eviction counter with a reason label.
func (a *Adapter) Evict(r streamer.EvictReason) {
	a.evicts.WithLabelValues(r.String()).Inc()
}

// Size updates gauges for the number of entries and resident bytes.
func (a *Adapter) Size(entries int, bytes int64) {
	a.sizeEnt.Set(float64(entries))
	a.sizeBytes.Set(float64(bytes))
}

// Decode counts a finished task. Cancelled tasks never ran, so only the
// others are observed in the latency histogram.
func (a *Adapter) Decode(r streamer.DecodeResult, elapsed time.Duration) {
	a.decodes.WithLabelValues(r.String()).Inc()
	if r != streamer.DecodeCanceled {
		a.decodeTime.Observe(elapsed.Seconds())
	}
}

// Queue updates the scheduler gauges.
func (a *Adapter) Queue(depth, inFlight int) {
	a.queueDepth.Set(float64(depth))
	a.inFlight.Set(float64(inFlight))
}

// Compile-time check: ensure Adapter implements streamer.Metrics.
var _ streamer.Metrics = (*Adapter)(nil)
