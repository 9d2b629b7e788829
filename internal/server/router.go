package server

import (
	"net/http"

	"github.com/rathix/devproxy/internal/proxyrule"
)

// Router is the dev server's proxy table. Requests whose path, as sent on the
// wire, starts with the rule prefix go to the forward handler; all others go
// to the local handler. Percent-encoded spellings of the prefix do not match.
// Internal endpoints registered with Handle take precedence over both.
type Router struct {
	rule      proxyrule.Rule
	forward   http.Handler
	local     http.Handler
	endpoints map[string]http.Handler
}

// NewRouter returns a router for rule. The rule is copied and read-only.
func NewRouter(rule proxyrule.Rule, forward, local http.Handler) *Router {
	return &Router{
		rule:      rule,
		forward:   forward,
		local:     local,
		endpoints: make(map[string]http.Handler),
	}
}

// Handle registers h for the exact request path p. It must be called before
// the router starts serving.
func (rt *Router) Handle(p string, h http.Handler) {
	rt.endpoints[p] = h
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h, ok := rt.endpoints[r.URL.Path]; ok {
		h.ServeHTTP(w, r)
		return
	}
	if rt.rule.Matches(r.URL.EscapedPath()) {
		rt.forward.ServeHTTP(w, r)
		return
	}
	rt.local.ServeHTTP(w, r)
}
