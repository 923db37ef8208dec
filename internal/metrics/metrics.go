// Package metrics exposes scheduling and subscription counters in the
// Prometheus text format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "taskcal"

// Metrics implements planner.Observer on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	tasksPlaced        *prometheus.CounterVec
	tasksUnschedulable prometheus.Counter
	occurrencesCreated prometheus.Counter

	refreshTotal    *prometheus.CounterVec
	refreshDuration *prometheus.HistogramVec
	importedEvents  *prometheus.GaugeVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		tasksPlaced: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "tasks_placed_total",
				Help:      "Tasks placed, by the cascade stage that produced the slot.",
			},
			[]string{"stage"},
		),
		tasksUnschedulable: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "tasks_unschedulable_total",
				Help:      "Tasks rejected because no free slot was found.",
			},
		),
		occurrencesCreated: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "occurrences_created_total",
				Help:      "Events stored by AddEvent, recurring occurrences included.",
			},
		),
		refreshTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "subscription",
				Name:      "refresh_total",
				Help:      "Subscription refresh attempts by source and result.",
			},
			[]string{"source", "result"},
		),
		refreshDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "subscription",
				Name:      "refresh_duration_seconds",
				Help:      "Fetch, parse and expand latency per source.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		importedEvents: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "subscription",
				Name:      "imported_events",
				Help:      "Events currently imported from each source.",
			},
			[]string{"source"},
		),
	}
}

func (m *Metrics) TaskPlaced(stage string) { m.tasksPlaced.WithLabelValues(stage).Inc() }

func (m *Metrics) TaskUnschedulable() { m.tasksUnschedulable.Inc() }

func (m *Metrics) OccurrencesCreated(n int) { m.occurrencesCreated.Add(float64(n)) }

// RefreshDone records one refresh of source. imported is only used when err
// is nil.
func (m *Metrics) RefreshDone(source string, imported int, took time.Duration, err error) {
	m.refreshDuration.WithLabelValues(source).Observe(took.Seconds())
	if err != nil {
		m.refreshTotal.WithLabelValues(source, "error").Inc()
		return
	}
	m.refreshTotal.WithLabelValues(source, "ok").Inc()
	m.importedEvents.WithLabelValues(source).Set(float64(imported))
}

// Handler serves the registry for /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
