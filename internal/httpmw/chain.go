package httpmw

import "net/http"

// Chain wraps h in mws with the first entry outermost. Nil entries are
// skipped, so optional middlewares (rate limiting, tracing) can be passed
// unconditionally by the composition site.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		if mw := mws[i]; mw != nil {
			h = mw(h)
		}
	}
	return h
}
