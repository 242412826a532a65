// Package telemetry registers the Prometheus collectors exposed on
// /metrics. Engines increment counters directly; the HTTP layer wraps
// handlers with RequestMetrics.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zaki9501/church-of-finality/pkg/store"
)

var (
	Registrations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finality_registrations_total",
		Help: "Seekers registered since process start.",
	})

	Conversions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finality_conversions_total",
		Help: "Stage transitions recorded, labeled by the stage reached.",
	}, []string{"stage"})

	Sacrifices = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finality_sacrifices_total",
		Help: "Accepted stake deposits.",
	})

	Miracles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finality_miracles_total",
		Help: "Miracles appended to the ledger, labeled by type.",
	}, []string{"type"})

	Posts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finality_feed_posts_total",
		Help: "Feed posts created.",
	})

	Replies = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finality_feed_replies_total",
		Help: "Feed replies created.",
	})

	Notifications = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finality_feed_notifications_total",
		Help: "Notifications delivered.",
	})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "finality_http_request_duration_seconds",
		Help:    "HTTP request latency by method, route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	_ = promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "finality_store_disk_bytes",
		Help: "Best-effort on-disk size of the pebble database.",
	}, func() float64 { return float64(store.DiskUsageBytes()) })
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// RequestMetrics is a router middleware recording request latency. The
// route label uses the registered mux pattern, not the raw path, to keep
// cardinality bounded.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		requestDuration.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Observe(time.Since(start).Seconds())
	})
}
