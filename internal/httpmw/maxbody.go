package httpmw

import (
	"mime"
	"net/http"
)

// MaxBody limits request body size. Requests exceeding the limit
// receive 413 Request Entity Too Large when the body is read.
func MaxBody(bytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, bytes)
			next.ServeHTTP(w, r)
		})
	}
}

// MaxBodyByType caps bodies of the listed media types, leaving everything
// else (notably multipart uploads) untouched. A request with no Content-Type
// is treated as capped: the parsers downstream will reject it anyway, and a
// cap keeps it from buffering unbounded input first.
func MaxBodyByType(bytes int64, types ...string) func(http.Handler) http.Handler {
	limited := make(map[string]bool, len(types))
	for _, t := range types {
		limited[t] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil || limited[mt] {
				r.Body = http.MaxBytesReader(w, r.Body, bytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
