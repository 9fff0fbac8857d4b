package httpmw

import (
	"net/http"
	"runtime/debug"

	"github.com/keithlinneman/chaingate/internal/log"
	"github.com/keithlinneman/chaingate/internal/xerrors"
)

// Recover catches downstream panics, logs them with a stack and serves a
// plain 500. onPanic (optional) is invoked for metrics. http.ErrAbortHandler
// is re-raised so aborted proxied responses keep stdlib semantics.
func Recover(base log.Logger, onPanic func()) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				if onPanic != nil {
					onPanic()
				}

				L := log.FromContext(r.Context())
				if L == nil {
					L = base
				}
				err, ok := rec.(error)
				if !ok {
					err = xerrors.Newf("panic: %v", rec)
				}
				L.Error(r.Context(), err, "panic in http handler",
					"url.path", r.URL.Path,
					"stack", string(debug.Stack()),
				)

				// best effort; header may already be gone
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
