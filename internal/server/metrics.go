package server

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "devproxy"

// Route labels used to partition request metrics.
const (
	RouteProxy = "proxy"
	RouteLocal = "local"
)

// Metrics collects request and upstream error metrics for the dev server.
type Metrics struct {
	requestsInFlight *prometheus.GaugeVec
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	upstreamErrors   *prometheus.CounterVec
}

// NewMetrics registers the dev server metrics with r. A nil registerer
// registers into a throwaway registry.
func NewMetrics(r prometheus.Registerer) *Metrics {
	if r == nil {
		r = prometheus.NewRegistry()
	}
	f := promauto.With(r)

	return &Metrics{
		requestsInFlight: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being served.",
		}, []string{"route"}),
		requestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests processed.",
		}, []string{"route", "method", "code"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "code"}),
		upstreamErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "upstream_errors_total",
			Help:      "Number of proxied requests that failed before a response was received.",
		}, []string{"reason"}),
	}
}

// Wrap instruments h under the given route label. A nil receiver returns h.
func (m *Metrics) Wrap(route string, h http.Handler) http.Handler {
	if m == nil {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inFlight := m.requestsInFlight.WithLabelValues(route)
		inFlight.Inc()
		defer inFlight.Dec()

		rec := newStatusRecorder(w)
		start := time.Now()
		h.ServeHTTP(rec, r)

		code := strconv.Itoa(rec.Status())
		m.requestsTotal.WithLabelValues(route, r.Method, code).Inc()
		m.requestDuration.WithLabelValues(route, r.Method, code).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) upstreamError(reason string) {
	if m == nil {
		return
	}
	m.upstreamErrors.WithLabelValues(reason).Inc()
}

// statusRecorder remembers the status code written through it. Unwrap lets
// http.ResponseController reach the underlying writer for flushing. A
// connection hijacked before any status was written is recorded as 101,
// which is how ReverseProxy completes a protocol upgrade.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	if rec, ok := w.(*statusRecorder); ok {
		return rec
	}
	return &statusRecorder{ResponseWriter: w}
}

func (r *statusRecorder) WriteHeader(code int) {
	// 1xx responses are informational and followed by the real status.
	if r.status == 0 && code >= http.StatusOK {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Flush() {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	_ = http.NewResponseController(r.ResponseWriter).Flush()
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	conn, brw, err := http.NewResponseController(r.ResponseWriter).Hijack()
	if err == nil && r.status == 0 {
		r.status = http.StatusSwitchingProtocols
	}
	return conn, brw, err
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Status returns the written status, or 200 if nothing was written.
func (r *statusRecorder) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}
