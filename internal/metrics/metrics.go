// Package metrics exposes Prometheus counters for HTTP traffic and attempt events.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"color-quiz-service/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics implements app.Telemetry on top of Prometheus collectors.
type Metrics struct {
	gatherer prometheus.Gatherer

	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	attemptsCreated  prometheus.Counter
	answersRecorded  *prometheus.CounterVec
	attemptsFinished *prometheus.CounterVec
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"method", "endpoint"},
		),
		attemptsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attempts_created_total",
			Help: "Attempts created",
		}),
		answersRecorded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "answers_recorded_total",
				Help: "Answers recorded, by question type",
			},
			[]string{"qtype"},
		),
		attemptsFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attempts_finished_total",
				Help: "Finish calls, by outcome",
			},
			[]string{"outcome"},
		),
	}
	reg.MustRegister(m.requests, m.requestDuration, m.attemptsCreated, m.answersRecorded, m.attemptsFinished)
	return m
}

func (m *Metrics) AttemptCreated() { m.attemptsCreated.Inc() }

func (m *Metrics) AnswerRecorded(qtype domain.QuestionType) {
	m.answersRecorded.WithLabelValues(string(qtype)).Inc()
}

func (m *Metrics) AttemptFinished(outcome string) {
	m.attemptsFinished.WithLabelValues(outcome).Inc()
}

// Middleware counts requests by chi route pattern so ids do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			endpoint = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, endpoint, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
