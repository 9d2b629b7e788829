package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"syscall"
	"time"

	"github.com/rathix/devproxy/internal/proxyrule"
)

// Upstream error reasons reported in logs and metrics.
const (
	reasonInvalidTarget     = "invalid_target"
	reasonConnectionRefused = "connection_refused"
	reasonTimeout           = "timeout"
	reasonCanceled          = "canceled"
	reasonOther             = "other"
)

// forwardingHeaders are passed through exactly as the client sent them.
var forwardingHeaders = []string{"X-Forwarded-For", "X-Forwarded-Host", "X-Forwarded-Proto", "Forwarded"}

// Forwarder forwards requests matching a proxy rule to the rule's target
// origin. Method, headers and body pass through unchanged except Host, which
// is set to the target host. Status, headers and body of the upstream
// response are streamed back as received.
//
// A target that does not parse as an absolute http(s) or ws(s) URL does not
// prevent construction; every request then fails with 502.
type Forwarder struct {
	rule      proxyrule.Rule
	proxy     *httputil.ReverseProxy
	targetErr error
	logger    *slog.Logger
	metrics   *Metrics
}

// ForwarderOption configures a Forwarder.
type ForwarderOption func(*Forwarder, *http.Transport)

// WithDialTimeout bounds connection setup to the backend.
func WithDialTimeout(d time.Duration) ForwarderOption {
	return func(_ *Forwarder, t *http.Transport) {
		t.DialContext = (&net.Dialer{Timeout: d, KeepAlive: 30 * time.Second}).DialContext
	}
}

// WithResponseHeaderTimeout bounds the wait for the backend's response headers.
// Zero means no limit.
func WithResponseHeaderTimeout(d time.Duration) ForwarderOption {
	return func(_ *Forwarder, t *http.Transport) {
		t.ResponseHeaderTimeout = d
	}
}

// WithLogger sets the logger used for upstream errors.
func WithLogger(logger *slog.Logger) ForwarderOption {
	return func(f *Forwarder, _ *http.Transport) {
		f.logger = logger
	}
}

// WithMetrics records upstream errors in m.
func WithMetrics(m *Metrics) ForwarderOption {
	return func(f *Forwarder, _ *http.Transport) {
		f.metrics = m
	}
}

// NewForwarder builds the reverse proxy for rule.
func NewForwarder(rule proxyrule.Rule, opts ...ForwarderOption) *Forwarder {
	f := &Forwarder{
		rule:   rule,
		logger: slog.Default(),
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	for _, opt := range opts {
		opt(f, transport)
	}

	target, err := rule.TargetURL()
	if err != nil {
		f.targetErr = err
		return f
	}

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.Out.Host = target.Host
			// ReverseProxy strips these before Rewrite runs; the client's
			// values are forwarded as sent and nothing is appended.
			for _, h := range forwardingHeaders {
				if v, ok := pr.In.Header[h]; ok {
					pr.Out.Header[h] = v
				}
			}
		},
	}
	proxy.Transport = transport
	proxy.FlushInterval = -1
	proxy.ErrorHandler = f.handleError
	f.proxy = proxy
	return f
}

// Rule returns the rule the forwarder was built from.
func (f *Forwarder) Rule() proxyrule.Rule {
	return f.rule
}

// TargetErr reports why the target is unusable, or nil.
func (f *Forwarder) TargetErr() error {
	return f.targetErr
}

func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.targetErr != nil {
		f.metrics.upstreamError(reasonInvalidTarget)
		f.logger.Error("Proxy target is not a valid URL",
			"request_id", RequestID(r.Context()),
			"path", r.URL.Path,
			"target", f.rule.Target,
			"error", f.targetErr,
		)
		http.Error(w, "invalid proxy target "+f.rule.Target, http.StatusBadGateway)
		return
	}
	f.proxy.ServeHTTP(w, r)
}

func (f *Forwarder) handleError(w http.ResponseWriter, r *http.Request, err error) {
	reason := classifyUpstreamError(err)
	f.metrics.upstreamError(reason)

	level := slog.LevelError
	if reason == reasonCanceled {
		level = slog.LevelDebug
	}
	f.logger.Log(r.Context(), level, "Proxy error",
		"request_id", RequestID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
		"target", f.rule.Target,
		"reason", reason,
		"error", err,
	)
	w.WriteHeader(http.StatusBadGateway)
}

func classifyUpstreamError(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return reasonCanceled
	case errors.Is(err, syscall.ECONNREFUSED):
		return reasonConnectionRefused
	case errors.Is(err, context.DeadlineExceeded):
		return reasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return reasonTimeout
	}
	return reasonOther
}
