package observability

import (
	"github.com/aretw0/hsmgrid/pkg/domain"
	"github.com/aretw0/hsmgrid/pkg/lifecycle"
	"github.com/aretw0/hsmgrid/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of a registry.
type Metrics struct {
	StateChanges *prometheus.CounterVec
	Unhandled    *prometheus.CounterVec
	Exceptions   *prometheus.CounterVec
	Registered   prometheus.Gauge
	Delivered    prometheus.Counter
	Ticks        prometheus.Counter
}

var _ lifecycle.Listener = (*Metrics)(nil)

// NewMetrics creates unregistered collectors under namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		StateChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "state_changes_total",
				Help:      "Total number of completed transitions",
			},
			[]string{"machine", "state"},
		),
		Unhandled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "unhandled_transitions_total",
				Help:      "Total number of events no active state handled",
			},
			[]string{"machine"},
		),
		Exceptions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_exceptions_total",
				Help:      "Total number of failures while processing events",
			},
			[]string{"machine"},
		),
		Registered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registered_machines",
			Help:      "Number of machines currently registered",
		}),
		Delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_delivered_total",
			Help:      "Total number of events delivered by the dispatch driver",
		}),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Total number of registry updates",
		}),
	}
}

// MustRegister registers every collector with reg.
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(m.StateChanges, m.Unhandled, m.Exceptions, m.Registered, m.Delivered, m.Ticks)
}

// Hooks counts notifications per machine.
func (m *Metrics) Hooks() domain.Hooks {
	return domain.Hooks{
		OnStateChange: func(ev domain.StateChange) {
			m.StateChanges.WithLabelValues(ev.Machine.Name(), ev.To).Inc()
		},
		OnUnhandledTransition: func(ev domain.UnhandledTransition) {
			m.Unhandled.WithLabelValues(ev.Machine.Name()).Inc()
		},
		OnDispatchException: func(ev domain.DispatchException) {
			m.Exceptions.WithLabelValues(ev.Machine.Name()).Inc()
		},
	}
}

// OnLifecycleChange keeps the registered gauge in step with membership.
func (m *Metrics) OnLifecycleChange(_ *lifecycle.Manager, _ ports.Machine, change domain.LifecycleChangeType) bool {
	switch change {
	case domain.LifecycleAdded:
		m.Registered.Inc()
	case domain.LifecycleRemoved:
		m.Registered.Dec()
	default:
		return false
	}
	return true
}

// ObserveTick records one registry update and the events it delivered.
func (m *Metrics) ObserveTick(delivered int) {
	m.Ticks.Inc()
	m.Delivered.Add(float64(delivered))
}
