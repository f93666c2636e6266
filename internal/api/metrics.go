package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	scans           *prometheus.CounterVec
	selections      *prometheus.CounterVec
}

func newMetrics(registry *prometheus.Registry) *metrics {
	m := &metrics{
		registry: registry,
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finge_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finge_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		scans: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finge_scans_total",
				Help: "Image scans by outcome",
			},
			[]string{"outcome"},
		),
		selections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finge_recommendations_total",
				Help: "Recommendations served by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
	}
	registry.MustRegister(m.requests, m.requestDuration, m.scans, m.selections)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww, ok := w.(middleware.WrapResponseWriter)
		if !ok {
			ww = middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		}

		next.ServeHTTP(ww, r)

		route := routePattern(r)
		if route == "" {
			route = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// QuoteObserver counts upstream quote lookups in the given registry. Its
// result is meant for finge.Options.OnQuoteFetch.
func QuoteObserver(registry prometheus.Registerer) func(source, outcome string) {
	fetches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finge_quote_fetches_total",
			Help: "Upstream quote lookups by source and outcome",
		},
		[]string{"source", "outcome"},
	)
	registry.MustRegister(fetches)
	return func(source, outcome string) {
		fetches.WithLabelValues(source, outcome).Inc()
	}
}
