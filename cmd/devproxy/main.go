// Command devproxy is a front-end development server. Requests under /api are
// forwarded to the backend named by VITE_BACKEND_URL (default
// http://localhost:8000); everything else is served from the built front-end.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	appconfig "github.com/rathix/devproxy/internal/config"
	"github.com/rathix/devproxy/internal/proxyrule"
	"github.com/rathix/devproxy/internal/server"
)

// Version is injected at build time using ldflags.
var Version = "(unknown)"

const shutdownTimeout = 10 * time.Second

// config holds the resolved process configuration.
type config struct {
	ShowVersion bool
	PrintRule   bool
	ConfigFile  string
	Settings    *appconfig.Config

	// Errors from loading ConfigFile, logged once the logger exists.
	ConfigErrs        []error
	ConfigParseFailed bool
}

func main() {
	cfg, err := loadConfig(os.Args[1:], os.LookupEnv)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if cfg.ShowVersion {
		fmt.Printf("devproxy version %s\n", Version)
		return
	}

	// The rule is resolved exactly once and passed down explicitly.
	rule := proxyrule.ResolveEnv()

	if cfg.PrintRule {
		if err := printRule(os.Stdout, rule); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, rule); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig parses flags, environment variables and the optional settings
// file with precedence: Flag > Env > File > Default.
func loadConfig(args []string, lookup func(string) (string, bool)) (config, error) {
	fs := pflag.NewFlagSet("devproxy", pflag.ContinueOnError)

	cfg := config{}
	fs.BoolVar(&cfg.ShowVersion, "version", false, "print version and exit")
	fs.BoolVar(&cfg.PrintRule, "print-rule", false, "print the resolved proxy rule as JSON and exit")
	fs.StringVar(&cfg.ConfigFile, "config", getEnv(lookup, "CONFIG_FILE", ""), "path to YAML settings file")
	listen := fs.String("listen", "", "listen address (env LISTEN_ADDR, default "+appconfig.DefaultListenAddr+")")
	staticDir := fs.String("static-dir", "", "directory of built front-end assets (env STATIC_DIR, default "+appconfig.DefaultStaticDir+")")
	logFormat := fs.String("log-format", "", "log format, json or text (env LOG_FORMAT)")
	logLevel := fs.String("log-level", "", "log level, debug, info, warn or error (env LOG_LEVEL)")

	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	cfg.Settings = appconfig.Default()
	if cfg.ConfigFile != "" {
		settings, errs := appconfig.Load(cfg.ConfigFile)
		cfg.ConfigErrs = errs
		if settings != nil {
			cfg.Settings = settings
		} else {
			cfg.ConfigParseFailed = true
		}
	}

	override := func(dst *string, name, envKey, flagValue string) {
		if fs.Changed(name) {
			*dst = flagValue
			return
		}
		if v := getEnv(lookup, envKey, ""); v != "" {
			*dst = v
		}
	}
	override(&cfg.Settings.Listen, "listen", "LISTEN_ADDR", *listen)
	override(&cfg.Settings.Static.Dir, "static-dir", "STATIC_DIR", *staticDir)
	override(&cfg.Settings.Log.Format, "log-format", "LOG_FORMAT", *logFormat)
	override(&cfg.Settings.Log.Level, "log-level", "LOG_LEVEL", *logLevel)

	if cfg.Settings.Log.Format != "json" && cfg.Settings.Log.Format != "text" {
		return config{}, fmt.Errorf("unsupported log format %q: must be \"json\" or \"text\"", cfg.Settings.Log.Format)
	}
	if _, err := appconfig.ParseLevel(cfg.Settings.Log.Level); err != nil {
		return config{}, fmt.Errorf("unsupported log level %q: %w", cfg.Settings.Log.Level, err)
	}

	return cfg, nil
}

func getEnv(lookup func(string) (string, bool), key, fallback string) string {
	if lookup == nil {
		return fallback
	}
	if value, ok := lookup(key); ok {
		return value
	}
	return fallback
}

func printRule(w io.Writer, rule proxyrule.Rule) error {
	b, err := rule.MarshalIndent()
	if err != nil {
		return fmt.Errorf("failed to encode rule: %w", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func setupLogger(format string, level *slog.LevelVar) *slog.Logger {
	return setupLoggerWithWriter(format, level, os.Stdout)
}

func setupLoggerWithWriter(format string, level *slog.LevelVar, writer io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(writer, opts)
	} else {
		handler = slog.NewJSONHandler(writer, opts)
	}
	return slog.New(handler)
}

// run listens on the configured address and serves until ctx is cancelled.
func run(ctx context.Context, cfg config, rule proxyrule.Rule) error {
	ln, err := net.Listen("tcp", cfg.Settings.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Settings.Listen, err)
	}
	level := new(slog.LevelVar)
	logger := setupLogger(cfg.Settings.Log.Format, level)
	return serve(ctx, cfg, rule, ln, level, logger)
}

// serve runs the dev server on ln and, when a settings file is in use, the
// settings watcher. It returns after a graceful shutdown.
func serve(ctx context.Context, cfg config, rule proxyrule.Rule, ln net.Listener, level *slog.LevelVar, logger *slog.Logger) error {
	settings := cfg.Settings
	if lvl, err := appconfig.ParseLevel(settings.Log.Level); err == nil {
		level.Set(lvl)
	}
	slog.SetDefault(logger)

	slog.Info("Starting devproxy", "version", Version)
	for _, e := range cfg.ConfigErrs {
		if cfg.ConfigParseFailed {
			slog.Error("Config parse failed, continuing with defaults", "error", e)
		} else {
			slog.Warn("Config validation warning", "error", e)
		}
	}
	slog.Info("Proxy rule registered", "prefix", rule.Prefix, "target", rule.Target)

	var registry *prometheus.Registry
	if settings.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	handler := server.NewHandler(server.Options{
		Rule:                  rule,
		StaticDir:             settings.Static.Dir,
		BasePath:              settings.Static.Base,
		SPAFallback:           settings.Static.SPAFallback,
		DialTimeout:           settings.Proxy.Dial(),
		ResponseHeaderTimeout: settings.Proxy.ResponseHeader(),
		MetricsPath:           settings.Metrics.Path,
		Registry:              registry,
		Logger:                logger,
	})

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Listening (HTTP)", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		slog.Info("Server stopped")
		return nil
	})

	if cfg.ConfigFile != "" {
		reloader := appconfig.NewReloader(settings, level, logger)
		watcher := appconfig.NewWatcher(cfg.ConfigFile, reloader.Apply, logger)
		g.Go(func() error {
			if err := watcher.Run(gctx); err != nil {
				// A broken watcher only disables hot reload.
				slog.Warn("config watcher stopped with error", "error", err)
			}
			return nil
		})
	}

	return g.Wait()
}
