package server

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
)

// SPAHandler serves a built front-end from a filesystem and, when fallback is
// enabled, answers extensionless paths that match no file with index.html so
// client-side routes survive a reload. Missing files with an extension are 404.
type SPAHandler struct {
	fileServer http.Handler
	filesystem fs.FS
	fallback   bool
}

// NewSPAHandler creates a handler that serves files from fsys.
func NewSPAHandler(fsys fs.FS, fallback bool) *SPAHandler {
	return &SPAHandler{
		fileServer: http.FileServer(http.FS(fsys)),
		filesystem: fsys,
		fallback:   fallback,
	}
}

// NewDirHandler serves the directory dir. It fails if dir is not an existing directory.
func NewDirHandler(dir string, fallback bool) (*SPAHandler, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("static directory %s does not exist", dir)
		}
		return nil, fmt.Errorf("failed to stat static directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("static path %s is not a directory", dir)
	}
	return NewSPAHandler(os.DirFS(dir), fallback), nil
}

func (h *SPAHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	urlPath := r.URL.Path
	if urlPath == "" || urlPath == "/" {
		h.serveIndex(w, r)
		return
	}

	name := strings.TrimPrefix(path.Clean(urlPath), "/")
	if _, err := fs.Stat(h.filesystem, name); err == nil {
		h.fileServer.ServeHTTP(w, r)
		return
	}

	// r.URL.Path is already decoded, so %2Ecss counts as an extension here.
	if !h.fallback || path.Ext(urlPath) != "" {
		http.NotFound(w, r)
		return
	}

	h.serveIndex(w, r)
}

func (h *SPAHandler) serveIndex(w http.ResponseWriter, r *http.Request) {
	if _, err := fs.Stat(h.filesystem, "index.html"); err != nil {
		http.NotFound(w, r)
		return
	}
	r2 := r.Clone(r.Context())
	r2.URL.Path = "/"
	r2.URL.RawPath = ""
	h.fileServer.ServeHTTP(w, r2)
}
