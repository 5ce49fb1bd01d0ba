package remote

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/notetaker/pkg/core"
)

// Metrics records what a handler serves. A nil *Metrics records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	streams  *prometheus.GaugeVec
	pushed   *prometheus.CounterVec
}

// NewMetrics creates the handler collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notetaker",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests.",
			},
			[]string{"route", "method", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "notetaker",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds. Push streams are excluded.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		streams: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "notetaker",
				Subsystem: "push",
				Name:      "streams",
				Help:      "Open push streams by event type.",
			},
			[]string{"type"},
		),
		pushed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notetaker",
				Subsystem: "push",
				Name:      "events_total",
				Help:      "Events written to push streams.",
			},
			[]string{"type"},
		),
	}
	reg.MustRegister(m.requests, m.duration, m.streams, m.pushed)
	return m
}

func (m *Metrics) observeRequest(r *http.Request, status int, d time.Duration) {
	if m == nil {
		return
	}
	route := "unmatched"
	if cur := mux.CurrentRoute(r); cur != nil {
		if tpl, err := cur.GetPathTemplate(); err == nil {
			route = tpl
		}
	}
	m.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
	if route != eventsRoute {
		m.duration.WithLabelValues(route, r.Method).Observe(d.Seconds())
	}
}

func (m *Metrics) streamOpened(t core.EventType) {
	if m != nil {
		m.streams.WithLabelValues(string(t)).Inc()
	}
}

func (m *Metrics) streamClosed(t core.EventType) {
	if m != nil {
		m.streams.WithLabelValues(string(t)).Dec()
	}
}

func (m *Metrics) eventPushed(t core.EventType) {
	if m != nil {
		m.pushed.WithLabelValues(string(t)).Inc()
	}
}
