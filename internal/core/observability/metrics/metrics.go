// Package metrics collects engine counters in a Prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zeusync/gamecore/internal/core/events/bus"
)

const namespace = "gamecore"

var _ bus.Observer = (*Collector)(nil)

// Collector owns a private registry so several engines can run in one
// process.
type Collector struct {
	registry *prometheus.Registry

	ticks        prometheus.Counter
	tickFaults   prometheus.Counter
	tickDuration prometheus.Histogram
	entities     prometheus.Gauge
	spawned      prometheus.Gauge

	events        *prometheus.CounterVec
	eventErrors   *prometheus.CounterVec
	eventHandlers prometheus.Histogram
	eventLatency  prometheus.Histogram
}

func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "tick", Name: "total",
			Help: "Ticks executed.",
		}),
		tickFaults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "tick", Name: "faults_total",
			Help: "Ticks that returned an error.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "tick", Name: "duration_seconds",
			Help:    "Wall time spent inside a tick.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		entities: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "entities",
			Help: "Entities known to the engine.",
		}),
		spawned: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "entities_spawned",
			Help: "Entities currently spawned.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "bus", Name: "events_total",
			Help: "Events published by type.",
		}, []string{"type"}),
		eventErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "bus", Name: "errors_total",
			Help: "Publishes where at least one handler failed.",
		}, []string{"type"}),
		eventHandlers: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "bus", Name: "handlers",
			Help:    "Handlers invoked per publish.",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32},
		}),
		eventLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "bus", Name: "delivery_seconds",
			Help:    "Time spent delivering one event.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
	}
	c.registry.MustRegister(
		c.ticks, c.tickFaults, c.tickDuration, c.entities, c.spawned,
		c.events, c.eventErrors, c.eventHandlers, c.eventLatency,
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveTick records one tick and whether it failed.
func (c *Collector) ObserveTick(d time.Duration, err error) {
	c.ticks.Inc()
	c.tickDuration.Observe(d.Seconds())
	if err != nil {
		c.tickFaults.Inc()
	}
}

func (c *Collector) SetEntities(total, spawned int) {
	c.entities.Set(float64(total))
	c.spawned.Set(float64(spawned))
}

func (c *Collector) OnDelivered(eventType string, handlers int, err error, durationMicros int64) {
	c.events.WithLabelValues(eventType).Inc()
	if err != nil {
		c.eventErrors.WithLabelValues(eventType).Inc()
	}
	c.eventHandlers.Observe(float64(handlers))
	c.eventLatency.Observe(float64(durationMicros) / 1e6)
}
