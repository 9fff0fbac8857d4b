// Package swaggerhttp serves the interactive API documentation UI. The page
// is embedded in the binary; the UI loads its assets from the unpkg CDN and
// fetches the schema from /static/swagger.json on the doc mount.
package swaggerhttp

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed swaggerui
var uiFS embed.FS

type Handler struct {
	fsys fs.FS
}

func New() *Handler {
	sub, err := fs.Sub(uiFS, "swaggerui")
	if err != nil {
		// embed paths are fixed at compile time
		panic(err)
	}
	return &Handler{fsys: sub}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	switch r.URL.Path {
	case "/", "", "/index.html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		http.ServeFileFS(w, r, h.fsys, "index.html")
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}
