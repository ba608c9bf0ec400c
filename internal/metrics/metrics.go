// Package metrics holds the Prometheus collectors for the responder.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "responder"

// Metrics holds Prometheus metrics for the dispatch pipeline and rule cache
type Metrics struct {
	eventsTotal        *prometheus.CounterVec
	candidatesTotal    *prometheus.CounterVec
	firesTotal         *prometheus.CounterVec
	suppressedTotal    *prometheus.CounterVec
	regexTimeoutsTotal prometheus.Counter
	refreshTotal       *prometheus.CounterVec
	cachedChannels     prometheus.Gauge
	sendErrorsTotal    prometheus.Counter
}

// New creates and registers responder metrics. A nil registerer returns nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "events_total",
			Help:      "Chat events received by the dispatch pipeline",
		}, []string{"kind"}),

		candidatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "candidates_total",
			Help:      "Rules that matched an incoming message",
		}, []string{"matcher"}),

		firesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "fires_total",
			Help:      "Responses sent",
		}, []string{"source"}),

		suppressedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "suppressed_total",
			Help:      "Matched responses dropped by a gate",
		}, []string{"reason"}),

		regexTimeoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matcher",
			Name:      "regex_timeouts_total",
			Help:      "Regex trigger evaluations that hit the match timeout",
		}),

		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "refresh_total",
			Help:      "Rule cache refresh attempts",
		}, []string{"result"}),

		cachedChannels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "channels",
			Help:      "Channels in the current rule snapshot",
		}),

		sendErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "send_errors_total",
			Help:      "Outgoing messages the transport failed to deliver",
		}),
	}

	reg.MustRegister(
		m.eventsTotal,
		m.candidatesTotal,
		m.firesTotal,
		m.suppressedTotal,
		m.regexTimeoutsTotal,
		m.refreshTotal,
		m.cachedChannels,
		m.sendErrorsTotal,
	)

	return m
}

// Event counts an inbound event of the given kind (message, notice)
func (m *Metrics) Event(kind string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(kind).Inc()
}

// Candidates counts matched rules per matcher (phrase, regex)
func (m *Metrics) Candidates(matcher string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.candidatesTotal.WithLabelValues(matcher).Add(float64(n))
}

// Fired counts a sent response per source (rule, user_reply, notice, intercept)
func (m *Metrics) Fired(source string) {
	if m == nil {
		return
	}
	m.firesTotal.WithLabelValues(source).Inc()
}

// Suppressed counts a response dropped by permission or cooldown
func (m *Metrics) Suppressed(reason string) {
	if m == nil {
		return
	}
	m.suppressedTotal.WithLabelValues(reason).Inc()
}

// RegexTimeout counts a regex match that timed out
func (m *Metrics) RegexTimeout() {
	if m == nil {
		return
	}
	m.regexTimeoutsTotal.Inc()
}

// Refresh records a cache refresh outcome and the resulting channel count
func (m *Metrics) Refresh(ok bool, channels int) {
	if m == nil {
		return
	}
	if !ok {
		m.refreshTotal.WithLabelValues("error").Inc()
		return
	}
	m.refreshTotal.WithLabelValues("ok").Inc()
	m.cachedChannels.Set(float64(channels))
}

// SendError counts a failed outbound send
func (m *Metrics) SendError() {
	if m == nil {
		return
	}
	m.sendErrorsTotal.Inc()
}
