package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the service. A nil *Metrics is valid and records nothing.
type Metrics struct {
	QuestionsGenerated *prometheus.CounterVec
	GenerationFailures *prometheus.CounterVec
	AnswersSubmitted   *prometheus.CounterVec
	MessagesReceived   *prometheus.CounterVec
	ActiveConnections  prometheus.Gauge
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		QuestionsGenerated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cybercalc",
				Name:      "questions_generated_total",
				Help:      "Questions generated, by difficulty",
			},
			[]string{"difficulty"},
		),
		GenerationFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cybercalc",
				Name:      "generation_failures_total",
				Help:      "Generation attempts that could not satisfy the option invariants",
			},
			[]string{"level"},
		),
		AnswersSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cybercalc",
				Name:      "answers_submitted_total",
				Help:      "Answers submitted, by outcome",
			},
			[]string{"outcome"},
		),
		MessagesReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cybercalc",
				Subsystem: "ws",
				Name:      "messages_received_total",
				Help:      "Inbound websocket messages, by type",
			},
			[]string{"type"},
		),
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "cybercalc",
			Subsystem: "ws",
			Name:      "active_connections",
			Help:      "Open websocket connections",
		}),
	}
}

func (m *Metrics) ObserveQuestion(difficulty string) {
	if m == nil {
		return
	}
	m.QuestionsGenerated.WithLabelValues(difficulty).Inc()
}

func (m *Metrics) ObserveGenerationFailure(level string) {
	if m == nil {
		return
	}
	m.GenerationFailures.WithLabelValues(level).Inc()
}

func (m *Metrics) ObserveAnswer(correct bool) {
	if m == nil {
		return
	}
	outcome := "wrong"
	if correct {
		outcome = "correct"
	}
	m.AnswersSubmitted.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveMessage(msgType string) {
	if m == nil {
		return
	}
	m.MessagesReceived.WithLabelValues(msgType).Inc()
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.ActiveConnections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.ActiveConnections.Dec()
}
