package server

import (
	"net/http"
	"strings"
)

// NormalizeBasePath ensures the base path starts and ends with '/'.
func NormalizeBasePath(basePath string) string {
	if basePath == "" {
		return "/"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	if !strings.HasSuffix(basePath, "/") {
		basePath = basePath + "/"
	}
	return basePath
}

// BasePathHandler serves local assets below a public base path. Requests under
// the base have it stripped before reaching the inner handler, the bare site
// root redirects to the base, and anything else is 404.
type BasePathHandler struct {
	basePath string
	inner    http.Handler
}

// NewBasePathHandler wraps inner so that it is reachable under basePath. If
// basePath normalizes to "/", inner is returned unchanged.
func NewBasePathHandler(basePath string, inner http.Handler) http.Handler {
	bp := NormalizeBasePath(basePath)
	if bp == "/" {
		return inner
	}
	return &BasePathHandler{
		basePath: bp,
		inner:    inner,
	}
}

func (h *BasePathHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasPrefix(r.URL.Path, h.basePath):
		h.serveStripped(w, r, "/"+strings.TrimPrefix(r.URL.Path, h.basePath))
	case r.URL.Path+"/" == h.basePath:
		h.serveStripped(w, r, "/")
	case r.URL.Path == "/" || r.URL.Path == "/index.html":
		http.Redirect(w, r, h.basePath, http.StatusFound)
	default:
		http.Error(w, "404 page not found: the server is configured with a public base URL of "+h.basePath, http.StatusNotFound)
	}
}

func (h *BasePathHandler) serveStripped(w http.ResponseWriter, r *http.Request, stripped string) {
	r2 := r.Clone(r.Context())
	r2.URL.Path = stripped
	r2.URL.RawPath = ""
	h.inner.ServeHTTP(w, r2)
}
