package session

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts lifecycle outcomes. A nil *Metrics is a valid no-op.
type Metrics struct {
	issued         prometheus.Counter
	rotations      *prometheus.CounterVec
	verifyFailures *prometheus.CounterVec
	revocations    prometheus.Counter
	swept          prometheus.Counter
}

// NewMetrics registers the session collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		issued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rsvp", Subsystem: "session", Name: "issued_total",
			Help: "Credential pairs issued (login, registration, rotation).",
		}),
		rotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rsvp", Subsystem: "session", Name: "rotations_total",
			Help: "Refresh rotations by outcome.",
		}, []string{"result"}),
		verifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rsvp", Subsystem: "session", Name: "access_verify_failures_total",
			Help: "Rejected access tokens by reason.",
		}, []string{"reason"}),
		revocations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rsvp", Subsystem: "session", Name: "revocations_total",
			Help: "Refresh credentials revoked by logout.",
		}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rsvp", Subsystem: "session", Name: "swept_total",
			Help: "Expired refresh records removed by the sweeper.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.issued, m.rotations, m.verifyFailures, m.revocations, m.swept)
	}
	return m
}

func (m *Metrics) incIssued() {
	if m != nil {
		m.issued.Inc()
	}
}

func (m *Metrics) incRotation(result string) {
	if m != nil {
		m.rotations.WithLabelValues(result).Inc()
	}
}

// IncVerifyFailure records an access-token rejection.
func (m *Metrics) IncVerifyFailure(reason string) {
	if m != nil {
		m.verifyFailures.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) incRevocation() {
	if m != nil {
		m.revocations.Inc()
	}
}

func (m *Metrics) addSwept(n int64) {
	if m != nil && n > 0 {
		m.swept.Add(float64(n))
	}
}
