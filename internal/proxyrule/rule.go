// Package proxyrule resolves the single path-prefix forwarding rule used by
// the dev server. The rule is computed once at startup and passed explicitly
// into the proxy table; it is never mutated afterwards.
package proxyrule

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
)

const (
	// EnvBackendURL names the environment variable that overrides the backend origin.
	EnvBackendURL = "VITE_BACKEND_URL"
	// DefaultTarget is used when EnvBackendURL is unset or empty.
	DefaultTarget = "http://localhost:8000"
	// DefaultPrefix is the path prefix forwarded to the backend.
	DefaultPrefix = "/api"
)

// Rule maps a request path prefix to the origin that matching requests are
// forwarded to.
type Rule struct {
	Prefix string `json:"prefix"`
	Target string `json:"target"`
}

// LookupFunc matches the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Resolve builds the rule from lookup. An empty override is treated the same
// as an absent one. The target is taken verbatim and not validated here;
// a malformed value is reported by the forwarder when a request is proxied.
func Resolve(lookup LookupFunc) Rule {
	target := DefaultTarget
	if lookup != nil {
		if v, ok := lookup(EnvBackendURL); ok && v != "" {
			target = v
		}
	}
	return Rule{Prefix: DefaultPrefix, Target: target}
}

// ResolveEnv resolves the rule from the process environment.
func ResolveEnv() Rule {
	return Resolve(os.LookupEnv)
}

// Matches reports whether path starts with the rule prefix. The comparison is
// a literal string prefix, so "/apiary" matches "/api" as well.
func (r Rule) Matches(path string) bool {
	return r.Prefix != "" && strings.HasPrefix(path, r.Prefix)
}

// TargetURL parses the target as an absolute URL. Scheme and host are required.
// WebSocket targets are accepted and mapped to the HTTP scheme the upgrade
// handshake is sent over: ws to http and wss to https.
func (r Rule) TargetURL() (*url.URL, error) {
	u, err := url.Parse(r.Target)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy target %q: %w", r.Target, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid proxy target %q: scheme and host are required", r.Target)
	}
	switch u.Scheme {
	case "http", "https":
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	default:
		return nil, fmt.Errorf("invalid proxy target %q: unsupported scheme %q", r.Target, u.Scheme)
	}
	return u, nil
}

func (r Rule) String() string {
	return r.Prefix + " -> " + r.Target
}

// MarshalIndent renders the rule the way --print-rule shows it.
func (r Rule) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
