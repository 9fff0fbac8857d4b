// Package gateway assembles the public listener: health, static docs,
// swagger UI, the versioned API, and the reverse-proxy fallback for
// everything the gateway does not own yet.
package gateway

import (
	"context"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/keithlinneman/chaingate/internal/apihttp"
	"github.com/keithlinneman/chaingate/internal/dochttp"
	"github.com/keithlinneman/chaingate/internal/httpmw"
	"github.com/keithlinneman/chaingate/internal/log"
	"github.com/keithlinneman/chaingate/internal/proxyhttp"
	"github.com/keithlinneman/chaingate/internal/swaggerhttp"
	"github.com/keithlinneman/chaingate/internal/xerrors"
)

type Options struct {
	Logger log.Logger

	// Degraded serves the health endpoint only. Decided once, here; the
	// router is immutable for the process lifetime.
	Degraded bool

	// DocFS is the extracted documentation tree served under /static
	// and /apidoc. Required unless degraded.
	DocFS fs.FS

	// ProxyTarget is the legacy downstream everything unrouted goes to.
	// Required unless degraded.
	ProxyTarget *url.URL

	// APIRoutes are the controllers mounted under /v1.
	APIRoutes []apihttp.RouteTable

	// MetricsMW instruments every request (optional).
	MetricsMW func(http.Handler) http.Handler

	// RateLimitMW rejects over-limit clients (optional).
	RateLimitMW func(http.Handler) http.Handler

	// OnPanic is called when the recover middleware catches one.
	OnPanic func()

	// OnProxied receives the status class of each forwarded request.
	OnProxied func(statusClass string)

	// DebugProxy logs each proxied response at debug level.
	DebugProxy bool

	// EnableTracing wraps the handler in otelhttp instrumentation.
	EnableTracing bool

	Port int
}

// NewHandler builds the routing tree and middleware chain. main() owns
// *http.Server so it can do graceful shutdown.
func NewHandler(opts Options) (http.Handler, error) {
	L := opts.Logger
	if L == nil {
		L = log.Nop()
	}

	r := chi.NewRouter()

	// health answers in both modes, no side effects
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	if opts.Degraded {
		r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		return wrap(r, L, opts), nil
	}

	if opts.DocFS == nil {
		return nil, xerrors.New("doc filesystem is required")
	}
	if opts.ProxyTarget == nil {
		return nil, xerrors.New("proxy target is required")
	}

	docs := dochttp.New(opts.DocFS)
	r.Mount("/static", http.StripPrefix("/static", docs))
	r.Mount("/apidoc", http.StripPrefix("/apidoc", docs))
	r.Mount("/swagger", http.StripPrefix("/swagger", swaggerhttp.New()))

	r.Mount("/v1", apihttp.New(apihttp.Options{
		Logger: L,
		Routes: opts.APIRoutes,
	}))

	proxy, err := proxyhttp.New(proxyhttp.Options{
		Target:    opts.ProxyTarget,
		Logger:    L,
		Debug:     opts.DebugProxy,
		OnProxied: opts.OnProxied,
	})
	if err != nil {
		return nil, err
	}
	r.NotFound(proxy.ServeHTTP)
	r.MethodNotAllowed(proxy.ServeHTTP)

	return wrap(r, L, opts), nil
}

// wrap applies the global middleware chain. Security headers are
// outermost so they cover every response including recovered panics;
// the request-scoped logger sits inside tracing so it sees trace ids.
func wrap(r http.Handler, L log.Logger, opts Options) http.Handler {
	var tracing func(http.Handler) http.Handler
	if opts.EnableTracing {
		tracing = func(next http.Handler) http.Handler {
			return otelhttp.NewHandler(next, "http.server",
				otelhttp.WithFilter(func(r *http.Request) bool {
					return r.URL.Path != "/health"
				}),
				otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
					return r.Method + " " + r.URL.Path
				}),
				otelhttp.WithPublicEndpointFn(func(*http.Request) bool { return true }),
			)
		}
	}

	return httpmw.Chain(r,
		httpmw.SecurityHeaders,
		httpmw.Recover(L, opts.OnPanic),
		httpmw.RequestID("X-Request-Id"),
		opts.RateLimitMW,
		tracing,
		opts.MetricsMW,
		httpmw.WithLogger(L),
		httpmw.AccessLog(),
	)
}

// Start the public HTTP server.
// Returns stop(ctx) for graceful shutdown
func Start(ctx context.Context, opts Options) (func(context.Context) error, error) {
	L := opts.Logger
	if L == nil {
		L = log.Nop()
	}

	port := opts.Port
	if port == 0 {
		port = 8080
	}
	addr := fmt.Sprintf(":%d", port)

	handler, err := NewHandler(opts)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp4", addr)
	if err != nil {
		return nil, xerrors.EnsureTrace(err)
	}

	go func() {
		L.Info(ctx, "gateway listening", "addr", addr, "degraded", opts.Degraded)
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			L.Error(ctx, err, "gateway server error")
		}
	}()

	var once sync.Once
	stop := func(sctx context.Context) (retErr error) {
		once.Do(func() {
			L.Info(sctx, "gateway shutting down")
			c, cancel := context.WithTimeout(sctx, 10*time.Second)
			defer cancel()
			retErr = srv.Shutdown(c)
		})
		return retErr
	}
	return stop, nil
}
