package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads and parses a YAML settings file at path.
// If path does not exist or is empty, it returns Default() with no errors.
// If the YAML is malformed, it returns nil config with a parse error.
// For validation errors, it returns a usable config with each invalid field
// reset to its default, plus errors describing what was reset.
func Load(path string) (*Config, []error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, []error{fmt.Errorf("failed to read config file: %w", err)}
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		return Default(), nil
	}

	// Unmarshal over the defaults so omitted keys keep their default value.
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, []error{fmt.Errorf("failed to parse config YAML: %w", err)}
	}

	return cfg, validate(cfg)
}

func validate(cfg *Config) []error {
	def := Default()
	var errs []error

	if strings.TrimSpace(cfg.Listen) == "" {
		errs = append(errs, fmt.Errorf("listen: must not be empty"))
		cfg.Listen = def.Listen
	}

	if strings.TrimSpace(cfg.Static.Dir) == "" {
		errs = append(errs, fmt.Errorf("static.dir: must not be empty"))
		cfg.Static.Dir = def.Static.Dir
	}
	if cfg.Static.Base == "" {
		cfg.Static.Base = def.Static.Base
	}

	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: unsupported level %q", cfg.Log.Level))
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		errs = append(errs, fmt.Errorf("log.format: must be \"json\" or \"text\", got %q", cfg.Log.Format))
		cfg.Log.Format = def.Log.Format
	}

	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("metrics.path: must start with '/', got %q", cfg.Metrics.Path))
		cfg.Metrics.Path = def.Metrics.Path
	}

	if d, err := parseTimeout(cfg.Proxy.DialTimeout); err != nil {
		errs = append(errs, fmt.Errorf("proxy.dialTimeout: %w", err))
		cfg.Proxy.DialTimeout = def.Proxy.DialTimeout
		cfg.Proxy.dial = def.Proxy.dial
	} else {
		cfg.Proxy.dial = d
	}
	if d, err := parseTimeout(cfg.Proxy.ResponseHeaderTimeout); err != nil {
		errs = append(errs, fmt.Errorf("proxy.responseHeaderTimeout: %w", err))
		cfg.Proxy.ResponseHeaderTimeout = ""
		cfg.Proxy.responseHeader = 0
	} else {
		cfg.Proxy.responseHeader = d
	}

	return errs
}

// parseTimeout accepts an empty string as "no timeout".
func parseTimeout(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("must not be negative, got %q", s)
	}
	return d, nil
}

// RestartRequired lists the settings that differ between old and updated and
// cannot be applied to a running server. log.level is applied live and is
// never reported.
func RestartRequired(old, updated *Config) []string {
	if old == nil || updated == nil {
		return nil
	}
	var fields []string
	if old.Listen != updated.Listen {
		fields = append(fields, "listen")
	}
	if old.Static != updated.Static {
		fields = append(fields, "static")
	}
	if old.Log.Format != updated.Log.Format {
		fields = append(fields, "log.format")
	}
	if old.Metrics != updated.Metrics {
		fields = append(fields, "metrics")
	}
	if old.Proxy.DialTimeout != updated.Proxy.DialTimeout ||
		old.Proxy.ResponseHeaderTimeout != updated.Proxy.ResponseHeaderTimeout {
		fields = append(fields, "proxy")
	}
	return fields
}
