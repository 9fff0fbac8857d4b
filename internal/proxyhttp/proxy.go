// Package proxyhttp is the catch-all forwarder: requests no mount claimed
// are sent verbatim to the legacy downstream service.
package proxyhttp

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/keithlinneman/chaingate/internal/log"
	"github.com/keithlinneman/chaingate/internal/xerrors"
)

type Options struct {
	// Target is the downstream base URL. Required.
	Target *url.URL

	Logger log.Logger

	// Debug logs one line per proxied request; disabled in production.
	Debug bool

	// OnProxied receives the upstream status class ("2xx".."5xx", "error")
	// for metrics.
	OnProxied func(statusClass string)
}

type Proxy struct {
	rp     *httputil.ReverseProxy
	target *url.URL
	logger log.Logger
	debug  bool
	onDone func(string)
}

func New(opts Options) (*Proxy, error) {
	if opts.Target == nil {
		return nil, xerrors.New("proxy target is required")
	}
	L := opts.Logger
	if L == nil {
		L = log.Nop()
	}

	p := &Proxy{
		target: opts.Target,
		logger: L,
		debug:  opts.Debug,
		onDone: opts.OnProxied,
	}

	p.rp = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(opts.Target)
			// the legacy service routes on its own host header
			pr.Out.Host = opts.Target.Host
			pr.SetXForwarded()
		},
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   5 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			IdleConnTimeout:       60 * time.Second,
			MaxIdleConnsPerHost:   32,
		},
		ModifyResponse: p.observe,
		ErrorHandler:   p.handleError,
	}

	return p, nil
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.rp.ServeHTTP(w, r)
}

func (p *Proxy) observe(resp *http.Response) error {
	if p.onDone != nil {
		p.onDone(statusClass(resp.StatusCode))
	}
	if p.debug {
		req := resp.Request
		p.logger.Debug(req.Context(), "proxied request",
			"http.request.method", req.Method,
			"url.path", req.URL.Path,
			"upstream.host", p.target.Host,
			"http.response.status_code", resp.StatusCode,
		)
	}
	return nil
}

// handleError maps upstream failures: timeouts become 504, everything else
// 502. A client that went away gets nothing (the write would fail anyway).
func (p *Proxy) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if p.onDone != nil {
		p.onDone("error")
	}

	ctx := r.Context()
	if errors.Is(ctx.Err(), context.Canceled) {
		// client disconnected; upstream request was already cancelled
		p.logger.Debug(ctx, "proxy request abandoned by client", "url.path", r.URL.Path)
		return
	}

	status := http.StatusBadGateway
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}

	p.logger.Error(ctx, err, "proxy upstream error",
		"url.path", r.URL.Path,
		"upstream.host", p.target.Host,
	)
	w.WriteHeader(status)
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
