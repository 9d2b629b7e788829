// Package server implements the dev server's request handling: the proxy
// table, the reverse proxy to the backend and the local asset handler.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rathix/devproxy/internal/proxyrule"
)

// Options configures NewHandler.
type Options struct {
	Rule        proxyrule.Rule
	StaticDir   string
	BasePath    string
	SPAFallback bool

	DialTimeout           time.Duration
	ResponseHeaderTimeout time.Duration

	// MetricsPath exposes Registry when both are set.
	MetricsPath string
	Registry    *prometheus.Registry

	Logger *slog.Logger
}

// NewHandler assembles the full dev server handler. Neither an unusable
// proxy target nor a missing static directory is fatal: both are logged as
// warnings and surface as errors on the requests they affect.
func NewHandler(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var metrics *Metrics
	if opts.Registry != nil {
		metrics = NewMetrics(opts.Registry)
	}

	fwdOpts := []ForwarderOption{WithLogger(logger), WithMetrics(metrics)}
	if opts.DialTimeout > 0 {
		fwdOpts = append(fwdOpts, WithDialTimeout(opts.DialTimeout))
	}
	if opts.ResponseHeaderTimeout > 0 {
		fwdOpts = append(fwdOpts, WithResponseHeaderTimeout(opts.ResponseHeaderTimeout))
	}
	forwarder := NewForwarder(opts.Rule, fwdOpts...)
	if err := forwarder.TargetErr(); err != nil {
		logger.Warn("Proxy target is not a valid URL; proxied requests will fail",
			"prefix", opts.Rule.Prefix, "target", opts.Rule.Target, "error", err)
	}

	var local http.Handler
	spa, err := NewDirHandler(opts.StaticDir, opts.SPAFallback)
	if err != nil {
		logger.Warn("Static assets unavailable; non-proxied requests will return 404", "error", err)
		local = http.NotFoundHandler()
	} else {
		local = NewBasePathHandler(opts.BasePath, spa)
	}

	router := NewRouter(opts.Rule, metrics.Wrap(RouteProxy, forwarder), metrics.Wrap(RouteLocal, local))
	if opts.MetricsPath != "" && opts.Registry != nil {
		router.Handle(opts.MetricsPath, promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))
	}

	return RequestLogger(logger, router)
}
