// Package dochttp serves the static API documentation tree (including the
// OpenAPI document the swagger UI loads). Content is immutable for the
// process lifetime, so responses carry a day of cache.
package dochttp

import (
	"io/fs"
	"net/http"
	"path"
	"strings"
)

// DocCacheControl is applied to every served file.
const DocCacheControl = "public, max-age=86400"

type Handler struct {
	fsys fs.FS
}

func New(fsys fs.FS) *Handler {
	return &Handler{fsys: fsys}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// hardening: docs are read-only
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	file, ok := h.resolve(r.URL.Path)
	if !ok {
		// terminal fallback: empty-body 404
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Set("Cache-Control", DocCacheControl)
	http.ServeFileFS(w, r, h.fsys, file)
}

// resolve maps a request path onto a file in the doc root, serving
// index.html for directories. Anything that escapes or misses is a miss.
func (h *Handler) resolve(reqPath string) (string, bool) {
	name := path.Clean(strings.TrimPrefix(reqPath, "/"))
	if name == "." || name == "" {
		name = "index.html"
	}
	if strings.HasPrefix(name, "..") {
		return "", false
	}

	info, err := fs.Stat(h.fsys, name)
	if err != nil {
		return "", false
	}
	if info.IsDir() {
		name = path.Join(name, "index.html")
		if _, err := fs.Stat(h.fsys, name); err != nil {
			return "", false
		}
	}
	return name, true
}
