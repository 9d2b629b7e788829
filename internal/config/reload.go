package config

import (
	"log/slog"
	"sync"
)

// Reloader applies reloaded settings to a running process. Only the log
// level takes effect live; everything else is reported as needing a restart.
// A reload that fails to parse keeps the last-known-good settings.
type Reloader struct {
	mu      sync.Mutex
	current *Config
	level   *slog.LevelVar
	logger  *slog.Logger
}

// NewReloader returns a Reloader seeded with the settings the process started with.
func NewReloader(initial *Config, level *slog.LevelVar, logger *slog.Logger) *Reloader {
	return &Reloader{current: initial, level: level, logger: logger}
}

// Current returns the last-known-good settings.
func (r *Reloader) Current() *Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Apply is a ReloadCallback.
func (r *Reloader) Apply(cfg *Config, errs []error) {
	for _, e := range errs {
		if cfg == nil {
			r.logger.Error("Config reload parse failed", "error", e)
		} else {
			r.logger.Warn("Config reload validation warning", "error", e)
		}
	}
	if cfg == nil {
		return
	}

	r.mu.Lock()
	old := r.current
	r.current = cfg
	r.mu.Unlock()

	if lvl, err := ParseLevel(cfg.Log.Level); err == nil && r.level != nil && r.level.Level() != lvl {
		r.level.Set(lvl)
		r.logger.Info("Log level changed", "level", lvl.String())
	}
	if fields := RestartRequired(old, cfg); len(fields) > 0 {
		r.logger.Warn("Config changes require a restart to take effect", "fields", fields)
	}
}
