// Package metrics exposes prometheus collectors for the status reporter.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "appstatus"

// Metrics groups the collectors; a nil *Metrics is valid and records nothing.
type Metrics struct {
	ticks            *prometheus.CounterVec
	tickPanics       *prometheus.CounterVec
	tickDuration     *prometheus.GaugeVec
	recordsEmitted   *prometheus.CounterVec
	emitFailures     *prometheus.CounterVec
	timeSyncFailures prometheus.Counter
	eventsReceived   *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "ticks_total",
			Help:      "Number of scheduled task executions",
		}, []string{"scheduler"}),
		tickPanics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "tick_panics_total",
			Help:      "Number of scheduled task executions that panicked",
		}, []string{"scheduler"}),
		tickDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "tick_duration_seconds",
			Help:      "Duration of the last scheduled task execution",
		}, []string{"scheduler"}),
		recordsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "records",
			Name:      "emitted_total",
			Help:      "Number of status records emitted",
		}, []string{"topic"}),
		emitFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "records",
			Name:      "emit_failures_total",
			Help:      "Number of status records that could not be emitted",
		}, []string{"topic"}),
		timeSyncFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "time_sync",
			Name:      "failures_total",
			Help:      "Number of failed time synchronization probes",
		}),
		eventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "received_total",
			Help:      "Number of inbound status events",
		}, []string{"kind"}),
	}
}

func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.ticks,
		m.tickPanics,
		m.tickDuration,
		m.recordsEmitted,
		m.emitFailures,
		m.timeSyncFailures,
		m.eventsReceived,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) Tick(scheduler string, seconds float64) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(scheduler).Inc()
	m.tickDuration.WithLabelValues(scheduler).Set(seconds)
}

func (m *Metrics) TickPanic(scheduler string) {
	if m == nil {
		return
	}
	m.tickPanics.WithLabelValues(scheduler).Inc()
}

func (m *Metrics) RecordEmitted(topic string) {
	if m == nil {
		return
	}
	m.recordsEmitted.WithLabelValues(topic).Inc()
}

func (m *Metrics) EmitFailed(topic string) {
	if m == nil {
		return
	}
	m.emitFailures.WithLabelValues(topic).Inc()
}

func (m *Metrics) TimeSyncFailed() {
	if m == nil {
		return
	}
	m.timeSyncFailures.Inc()
}

func (m *Metrics) EventReceived(kind string) {
	if m == nil {
		return
	}
	m.eventsReceived.WithLabelValues(kind).Inc()
}
