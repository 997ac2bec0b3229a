// Package metrics exports Prometheus counters for Credit-Control processing.
package metrics

import (
	"context"
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/free5gc/ocs/internal/charging"
)

// Metrics is nil-safe: methods on a nil *Metrics do nothing.
type Metrics struct {
	ccrTotal       *prometheus.CounterVec
	droppedTotal   *prometheus.CounterVec
	grantedOctets  prometheus.Counter
	transitions    *prometheus.CounterVec
	activeSessions prometheus.Gauge
}

// New registers the collectors with reg, reusing any already registered. A nil
// reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ccrTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ocs",
			Name:      "ccr_total",
			Help:      "Credit-Control requests answered",
		}, []string{"request_type", "result"}),
		droppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ocs",
			Name:      "ccr_dropped_total",
			Help:      "Credit-Control requests left unanswered",
		}, []string{"reason"}),
		grantedOctets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ocs",
			Name:      "granted_octets_total",
			Help:      "Octets granted in Granted-Service-Unit",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ocs",
			Name:      "session_transitions_total",
			Help:      "Credit-Control session state transitions",
		}, []string{"from", "to"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ocs",
			Name:      "sessions_opened_minus_closed",
			Help:      "Sessions opened by this node minus sessions it closed",
		}),
	}

	if reg != nil {
		m.ccrTotal = registerOrReuse(reg, m.ccrTotal).(*prometheus.CounterVec)
		m.droppedTotal = registerOrReuse(reg, m.droppedTotal).(*prometheus.CounterVec)
		m.grantedOctets = registerOrReuse(reg, m.grantedOctets).(prometheus.Counter)
		m.transitions = registerOrReuse(reg, m.transitions).(*prometheus.CounterVec)
		m.activeSessions = registerOrReuse(reg, m.activeSessions).(prometheus.Gauge)
	}
	return m
}

func registerOrReuse(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}

// RecordAnswer counts one answered CCR.
func (m *Metrics) RecordAnswer(ans *charging.Answer) {
	if m == nil || ans == nil {
		return
	}
	m.ccrTotal.WithLabelValues(ans.RequestType.String(), strconv.FormatUint(uint64(ans.ResultCode), 10)).Inc()
	if !ans.Retransmission {
		m.grantedOctets.Add(float64(ans.GrantedUnits()))
	}
}

// RecordDropped counts a CCR that got no answer.
func (m *Metrics) RecordDropped(reason string) {
	if m == nil {
		return
	}
	m.droppedTotal.WithLabelValues(reason).Inc()
}

// OnTransition makes Metrics a charging.TransitionListener.
func (m *Metrics) OnTransition(_ context.Context, t charging.Transition) error {
	if m == nil {
		return nil
	}
	m.transitions.WithLabelValues(t.From.String(), t.To.String()).Inc()
	switch {
	case !t.From.Active() && t.To.Active():
		m.activeSessions.Inc()
	case t.From.Active() && !t.To.Active():
		m.activeSessions.Dec()
	}
	return nil
}
