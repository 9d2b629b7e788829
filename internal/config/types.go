package config

import (
	"log/slog"
	"time"
)

// Defaults applied to fields that are missing or invalid in the settings file.
const (
	DefaultListenAddr     = ":5173"
	DefaultStaticDir      = "frontend/dist"
	DefaultBasePath       = "/"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "json"
	DefaultMetricsPath    = "/__devproxy/metrics"
	DefaultDialTimeout    = 5 * time.Second
	defaultDialTimeoutStr = "5s"
)

// Config is the top-level configuration parsed from the YAML settings file.
// The forwarding rule itself is not configurable here; it is resolved from
// the environment by package proxyrule.
type Config struct {
	Listen  string        `yaml:"listen"  json:"listen"`
	Static  StaticConfig  `yaml:"static"  json:"static"`
	Log     LogConfig     `yaml:"log"     json:"log"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
	Proxy   ProxyConfig   `yaml:"proxy"   json:"proxy"`
}

// StaticConfig controls how non-proxied requests are served.
type StaticConfig struct {
	Dir         string `yaml:"dir"         json:"dir"`
	Base        string `yaml:"base"        json:"base"`
	SPAFallback bool   `yaml:"spaFallback" json:"spaFallback"`
}

// LogConfig controls the process logger. Level is applied live on reload.
type LogConfig struct {
	Level  string `yaml:"level"  json:"level"`
	Format string `yaml:"format" json:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path"    json:"path"`
}

// ProxyConfig holds upstream transport timeouts. Durations use Go syntax ("5s").
type ProxyConfig struct {
	DialTimeout           string `yaml:"dialTimeout"           json:"dialTimeout"`
	ResponseHeaderTimeout string `yaml:"responseHeaderTimeout" json:"responseHeaderTimeout"`

	dial           time.Duration
	responseHeader time.Duration
}

// Dial returns the parsed dial timeout.
func (p ProxyConfig) Dial() time.Duration { return p.dial }

// ResponseHeader returns the parsed response header timeout; zero means none.
func (p ProxyConfig) ResponseHeader() time.Duration { return p.responseHeader }

// Default returns a Config with every field set to its default.
func Default() *Config {
	return &Config{
		Listen: DefaultListenAddr,
		Static: StaticConfig{
			Dir:         DefaultStaticDir,
			Base:        DefaultBasePath,
			SPAFallback: true,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    DefaultMetricsPath,
		},
		Proxy: ProxyConfig{
			DialTimeout: defaultDialTimeoutStr,
			dial:        DefaultDialTimeout,
		},
	}
}

// ParseLevel converts a level name ("debug", "info", "warn", "error") to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(name))
	return level, err
}
