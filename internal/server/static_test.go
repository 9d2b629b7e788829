package server

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"index.html":          {Data: []byte("<html><body>SPA</body></html>")},
		"assets/index-a1b.js": {Data: []byte("console.log('app')")},
		"favicon.png":         {Data: []byte("fakepng")},
	}
}

func newTestHandler() *SPAHandler {
	return NewSPAHandler(testFS(), true)
}

func TestRootServesIndexHTML(t *testing.T) {
	handler := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "SPA") {
		t.Errorf("expected body to contain 'SPA', got %q", rec.Body.String())
	}
}

func TestStaticFileServedDirectly(t *testing.T) {
	handler := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/favicon.png", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if rec.Body.String() != "fakepng" {
		t.Errorf("expected 'fakepng', got %q", rec.Body.String())
	}
}

func TestNestedStaticFileServed(t *testing.T) {
	handler := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/assets/index-a1b.js", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "console.log") {
		t.Errorf("expected JS content, got %q", rec.Body.String())
	}
}

func TestSPAFallbackForUnknownRoute(t *testing.T) {
	handler := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/editor/settings", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "SPA") {
		t.Errorf("expected SPA fallback (index.html), got %q", rec.Body.String())
	}
}

func TestSPAFallbackForDeepRoute(t *testing.T) {
	handler := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/templates/modern/preview", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "SPA") {
		t.Errorf("expected SPA fallback (index.html), got %q", rec.Body.String())
	}
}

func TestNoFallbackForMissingFileWithExtension(t *testing.T) {
	handler := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/missing.css", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404 for missing file with extension, got %d", rec.Code)
	}
}

func TestNoFallbackForMissingJSFile(t *testing.T) {
	handler := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/assets/missing-chunk.js", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404 for missing .js file, got %d", rec.Code)
	}
}

func TestFallbackDisabledReturns404(t *testing.T) {
	handler := NewSPAHandler(testFS(), false)
	req := httptest.NewRequest(http.MethodGet, "/editor", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404 with fallback disabled, got %d", rec.Code)
	}
}

func TestFallbackWithoutIndexReturns404(t *testing.T) {
	fsys := testFS()
	delete(fsys, "index.html")
	handler := NewSPAHandler(fsys, true)

	for _, p := range []string{"/", "/editor"} {
		req := httptest.NewRequest(http.MethodGet, p, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected status 404 without index.html, got %d", p, rec.Code)
		}
	}
}

func TestFallbackDoesNotMutateRequest(t *testing.T) {
	handler := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/editor/settings", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if req.URL.Path != "/editor/settings" {
		t.Errorf("expected original request path to be preserved, got %q", req.URL.Path)
	}
}

func TestNewDirHandler(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>dist</html>"), 0o644); err != nil {
		t.Fatal(err)
	}

	handler, err := NewDirHandler(dir, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), "dist") {
		t.Errorf("expected index.html from directory, got %q", rec.Body.String())
	}
}

func TestNewDirHandlerErrors(t *testing.T) {
	if _, err := NewDirHandler(filepath.Join(t.TempDir(), "missing"), true); err == nil {
		t.Error("expected error for missing directory")
	}

	file := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewDirHandler(file, true); err == nil {
		t.Error("expected error for non-directory path")
	}
}
