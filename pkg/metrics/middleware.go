package metrics

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var defaultBuckets = []float64{50, 300, 1000, 5000, 15000}

const (
	// EnvLatencyBuckets is formatted like "100,200,300,400".
	EnvLatencyBuckets     = "VMWARE_MANAGER_LATENCY_BUCKETS"
	RequestsCollectorName = "http_requests_total"
	LatencyCollectorName  = "http_request_duration_milliseconds"
)

// Middleware exposes the number of requests and their latency partitioned
// by status code, method and route pattern. Guest operations hold a request
// for the whole grace period, hence the wide default buckets.
type Middleware struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func latencyBuckets() ([]float64, error) {
	conf, ok := os.LookupEnv(EnvLatencyBuckets)
	if !ok || strings.TrimSpace(conf) == "" {
		return defaultBuckets, nil
	}
	var buckets []float64
	for _, v := range strings.Split(conf, ",") {
		f64v, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvLatencyBuckets, err)
		}
		buckets = append(buckets, f64v)
	}
	return buckets, nil
}

// NewMiddleware returns a prometheus middleware labelled with the service
// name.
func NewMiddleware(name string) (*Middleware, error) {
	buckets, err := latencyBuckets()
	if err != nil {
		return nil, err
	}

	var m Middleware
	m.requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem:   vmwareManager,
			Name:        RequestsCollectorName,
			Help:        "Number of HTTP requests partitioned by status code, method and HTTP path.",
			ConstLabels: prometheus.Labels{"service": name},
		}, []string{"code", "method", "path"})

	m.latency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Subsystem:   vmwareManager,
		Name:        LatencyCollectorName,
		Help:        "Time spent on the request partitioned by status code, method and HTTP path.",
		ConstLabels: prometheus.Labels{"service": name},
		Buckets:     buckets,
	}, []string{"code", "method", "path"})

	return &m, nil
}

// Handler returns a handler for the middleware pattern.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		rp := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			rp = rctx.RoutePattern()
		}
		since := float64(time.Since(start).Milliseconds())
		m.requests.WithLabelValues(strconv.Itoa(ww.Status()), r.Method, rp).Inc()
		m.latency.WithLabelValues(strconv.Itoa(ww.Status()), r.Method, rp).Observe(since)
	}
	return http.HandlerFunc(fn)
}

// Register adds the middleware collectors to reg.
func (m *Middleware) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.requests, m.latency} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
