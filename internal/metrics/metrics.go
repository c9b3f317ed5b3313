// Package metrics keeps in-process counters for the watch session.
// Nothing is exposed over the network; counters are read back through Snapshot.
package metrics

import (
	"github.com/hidswatch/hidswatch/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "hidswatch"

// Metrics groups the counters shared by the detector, notifier and controller
type Metrics struct {
	registry *prometheus.Registry

	EventsObserved   *prometheus.CounterVec
	AlertsEmitted    *prometheus.CounterVec
	AlertsSuppressed prometheus.Counter
	LogWriteFailures prometheus.Counter
}

// Snapshot is a point-in-time copy of the counters
type Snapshot struct {
	EventsObserved   map[models.EventKind]float64
	AlertsEmitted    map[models.EventKind]float64
	AlertsSuppressed float64
	LogWriteFailures float64
}

// TotalObserved sums observed events across kinds
func (s Snapshot) TotalObserved() float64 {
	return sum(s.EventsObserved)
}

// TotalEmitted sums emitted alerts across kinds
func (s Snapshot) TotalEmitted() float64 {
	return sum(s.AlertsEmitted)
}

func sum(m map[models.EventKind]float64) float64 {
	var total float64
	for _, v := range m {
		total += v
	}
	return total
}

// New creates a Metrics instance backed by its own registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		EventsObserved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_observed_total",
			Help:      "Filesystem changes classified by the change detector.",
		}, []string{"kind"}),
		AlertsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_emitted_total",
			Help:      "Alert lines written to the console.",
		}, []string{"kind"}),
		AlertsSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_suppressed_total",
			Help:      "Events dropped inside the debounce window.",
		}),
		LogWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_write_failures_total",
			Help:      "Alert lines that could not be appended to the alert log.",
		}),
	}

	m.registry.MustRegister(m.EventsObserved, m.AlertsEmitted, m.AlertsSuppressed, m.LogWriteFailures)

	// Pre-create label values so snapshots always list every kind
	for _, k := range models.Kinds {
		m.EventsObserved.WithLabelValues(k.String())
		m.AlertsEmitted.WithLabelValues(k.String())
	}

	return m
}

// ObserveEvent counts a classified event
func (m *Metrics) ObserveEvent(kind models.EventKind) {
	if m == nil {
		return
	}
	m.EventsObserved.WithLabelValues(kind.String()).Inc()
}

// AlertEmitted counts an emitted alert
func (m *Metrics) AlertEmitted(kind models.EventKind) {
	if m == nil {
		return
	}
	m.AlertsEmitted.WithLabelValues(kind.String()).Inc()
}

// AlertSuppressed counts an event dropped by the debounce
func (m *Metrics) AlertSuppressed() {
	if m == nil {
		return
	}
	m.AlertsSuppressed.Inc()
}

// LogWriteFailed counts a failed append to the alert log
func (m *Metrics) LogWriteFailed() {
	if m == nil {
		return
	}
	m.LogWriteFailures.Inc()
}

// Snapshot gathers the current counter values
func (m *Metrics) Snapshot() (Snapshot, error) {
	snap := Snapshot{
		EventsObserved: make(map[models.EventKind]float64),
		AlertsEmitted:  make(map[models.EventKind]float64),
	}
	if m == nil {
		return snap, nil
	}

	families, err := m.registry.Gather()
	if err != nil {
		return snap, err
	}

	for _, mf := range families {
		switch mf.GetName() {
		case namespace + "_events_observed_total":
			collectByKind(mf, snap.EventsObserved)
		case namespace + "_alerts_emitted_total":
			collectByKind(mf, snap.AlertsEmitted)
		case namespace + "_alerts_suppressed_total":
			snap.AlertsSuppressed = firstValue(mf)
		case namespace + "_log_write_failures_total":
			snap.LogWriteFailures = firstValue(mf)
		}
	}

	return snap, nil
}

func collectByKind(mf *dto.MetricFamily, into map[models.EventKind]float64) {
	for _, metric := range mf.GetMetric() {
		for _, label := range metric.GetLabel() {
			if label.GetName() == "kind" {
				into[models.EventKind(label.GetValue())] = metric.GetCounter().GetValue()
			}
		}
	}
}

func firstValue(mf *dto.MetricFamily) float64 {
	if metrics := mf.GetMetric(); len(metrics) > 0 {
		return metrics[0].GetCounter().GetValue()
	}
	return 0
}
