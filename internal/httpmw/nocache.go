package httpmw

import "net/http"

// NoCache sets the header triad that disables caching on every response
// that passes through it, success and error alike. Headers are written
// before the downstream handler runs so they survive WriteHeader.
func NoCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Cache-Control", "no-store, no-cache, must-revalidate")
		h.Set("Pragma", "no-cache")
		h.Set("Expires", "0")
		next.ServeHTTP(w, r)
	})
}
