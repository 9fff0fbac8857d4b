// Package apihttp hosts the versioned API sub-application. It owns the three
// concerns every /v1 route shares: cache suppression, body limits, and the
// translation of tagged handler errors into the JSON envelope. Business
// controllers are handed in as an explicit route table, the server never
// discovers them.
package apihttp

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/chaingate/internal/httpmw"
	"github.com/keithlinneman/chaingate/internal/log"
)

// MaxBodyBytes caps form, JSON and text request bodies; a body of this
// size or larger is rejected. Multipart uploads are exempt (the
// downstream legacy service owns those limits).
const MaxBodyBytes = 512 << 10 // 512 KB

var limitedTypes = []string{
	"application/json",
	"application/x-www-form-urlencoded",
	"text/plain",
}

// HandlerFunc is an API controller. On success it writes the response
// itself; on failure it returns a tagged error and writes nothing.
type HandlerFunc func(http.ResponseWriter, *http.Request) *Error

// Router is the registration surface handed to route tables.
type Router struct {
	mux    chi.Router
	logger log.Logger
}

func (rt *Router) Get(pattern string, h HandlerFunc)  { rt.mux.Get(pattern, rt.wrap(h)) }
func (rt *Router) Post(pattern string, h HandlerFunc) { rt.mux.Post(pattern, rt.wrap(h)) }

func (rt *Router) Method(method, pattern string, h HandlerFunc) {
	rt.mux.Method(method, pattern, http.HandlerFunc(rt.wrap(h)))
}

func (rt *Router) wrap(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if apiErr := h(w, r); apiErr != nil {
			WriteError(w, r, rt.logger, apiErr)
		}
	}
}

// RouteTable registers a set of controllers onto the API router.
type RouteTable interface {
	RegisterRoutes(rt *Router)
}

type Options struct {
	Logger log.Logger
	Routes []RouteTable
}

// New builds the /v1 sub-application handler. Middleware order is fixed:
// no-cache headers first (so every outcome carries them), then the body cap,
// then dispatch; error translation happens in the route wrapper.
func New(opts Options) http.Handler {
	L := opts.Logger
	if L == nil {
		L = log.Nop()
	}

	mux := chi.NewRouter()
	mux.Use(httpmw.NoCache)
	mux.Use(httpmw.MaxBodyByType(MaxBodyBytes-1, limitedTypes...))

	rt := &Router{mux: mux, logger: L}
	for _, table := range opts.Routes {
		table.RegisterRoutes(rt)
	}

	// bare 404 for anything unrouted under the API prefix
	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	return mux
}

// WriteJSON writes a success payload.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps the error kind to a status and writes the envelope.
// Internal failures are logged with their cause; client errors are not.
func WriteError(w http.ResponseWriter, r *http.Request, L log.Logger, apiErr *Error) {
	status := apiErr.Kind.status()
	if status >= http.StatusInternalServerError {
		if L == nil {
			L = log.FromContext(r.Context())
		}
		L.Error(r.Context(), apiErr, "api handler error",
			"url.path", r.URL.Path,
			"error_kind", string(apiErr.Kind),
		)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiErr)
}

// DecodeJSON reads and decodes a JSON body, classifying failures.
func DecodeJSON(r *http.Request, v any) *Error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return FromBodyError(err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return FromBodyError(err)
	}
	return nil
}

// ParseForm parses an urlencoded body, classifying failures.
func ParseForm(r *http.Request) (url.Values, *Error) {
	if err := r.ParseForm(); err != nil {
		return nil, FromBodyError(err)
	}
	return r.PostForm, nil
}
