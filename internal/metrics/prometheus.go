package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"contentpilot/internal/types"
)

// Prometheus keeps the metric set in its own registry so several instances
// can coexist in one process.
type Prometheus struct {
	registry *prometheus.Registry

	publishTotal    *prometheus.CounterVec
	publishDuration *prometheus.HistogramVec
	tasksTotal      *prometheus.CounterVec
	scheduledTotal  *prometheus.CounterVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var _ Recorder = (*Prometheus)(nil)

// NewPrometheus creates and registers the collectors. namespace is
// lower-cased and used as the metric name prefix.
func NewPrometheus(namespace, version, commit string) *Prometheus {
	ns := strings.ToLower(strings.ReplaceAll(namespace, "-", "_"))
	if ns == "" {
		ns = strings.ToLower(types.MetricNamespace)
	}

	p := &Prometheus{registry: prometheus.NewRegistry()}

	p.publishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "publish_attempts_total",
			Help:      "Platform publish attempts by outcome",
		},
		[]string{"platform", "result"},
	)
	p.publishDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "publish_duration_seconds",
			Help:      "Platform publish duration including retries",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"platform"},
	)
	p.tasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "tasks_finished_total",
			Help:      "Publish tasks finished by final status",
		},
		[]string{"status"},
	)
	p.scheduledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "posts_scheduled_total",
			Help:      "Posts placed on the calendar",
		},
		[]string{"platform"},
	)
	p.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	p.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	info := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "service_info",
			Help:      "Service build information",
		},
		[]string{"version", "commit"},
	)

	p.registry.MustRegister(
		p.publishTotal,
		p.publishDuration,
		p.tasksTotal,
		p.scheduledTotal,
		p.httpRequestsTotal,
		p.httpRequestDuration,
		info,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	info.WithLabelValues(version, commit).Set(1)

	return p
}

func (p *Prometheus) RecordPublish(_ context.Context, platform types.Platform, success bool, latency time.Duration) {
	p.publishTotal.WithLabelValues(string(platform), resultLabel(success)).Inc()
	p.publishDuration.WithLabelValues(string(platform)).Observe(latency.Seconds())
}

func (p *Prometheus) RecordTaskFinished(_ context.Context, status types.TaskStatus) {
	p.tasksTotal.WithLabelValues(string(status)).Inc()
}

func (p *Prometheus) RecordPostScheduled(_ context.Context, platform types.Platform) {
	p.scheduledTotal.WithLabelValues(string(platform)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Middleware records request count and latency labelled by the chi route
// pattern, so path parameters do not explode cardinality.
func (p *Prometheus) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		p.httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		p.httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
