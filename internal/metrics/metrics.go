package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keithlinneman/chaingate/internal/version"
)

// GatewayMetrics owns the registry and every series the gateway emits.
// Labels stay low-cardinality: method, route pattern, status - never raw
// paths or hashes.
type GatewayMetrics struct {
	reg     *prometheus.Registry
	handler http.Handler

	inflight       prometheus.Gauge
	reqTotal       *prometheus.CounterVec
	reqDur         *prometheus.HistogramVec
	respBytes      *prometheus.HistogramVec
	httpPanicTotal prometheus.Counter
	buildInfo      *prometheus.GaugeVec

	ratelimitDeniedTotal prometheus.Counter
	proxiedTotal         *prometheus.CounterVec
	txLookupTotal        *prometheus.CounterVec
}

// New returns a fresh registry + standard collectors + gateway metrics
func New() *GatewayMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &GatewayMetrics{
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests",
		}),
		reqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		}, []string{"method", "route", "status"}),
		reqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency by method and route",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		respBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Response size by method and route",
			Buckets: []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304},
		}, []string{"method", "route"}),
		httpPanicTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_panic_total",
			Help: "Total number of recovered http handler panics",
		}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build metadata (value is always 1)",
		}, []string{"app", "component", "version", "commit", "go_version"}),
		ratelimitDeniedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_total",
			Help: "Total requests rejected by rate limiter",
		}),
		proxiedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_proxied_requests_total",
			Help: "Requests forwarded to the legacy upstream by status class",
		}, []string{"class"}),
		txLookupTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_tx_lookups_total",
			Help: "Transaction lookups by outcome (hit, miss, error)",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.inflight,
		m.reqTotal,
		m.reqDur,
		m.respBytes,
		m.httpPanicTotal,
		m.buildInfo,
		m.ratelimitDeniedTotal,
		m.proxiedTotal,
		m.txLookupTotal,
	)

	m.reg = reg
	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return m
}

// Handler serves the registry, mounted on the ops listener.
func (m *GatewayMetrics) Handler() http.Handler { return m.handler }

func (m *GatewayMetrics) SetBuildInfo(component string, vi version.Info) {
	m.buildInfo.WithLabelValues(vi.AppName, component, vi.Version, vi.Commit, vi.GoVersion).Set(1)
}

func (m *GatewayMetrics) IncHttpPanic()        { m.httpPanicTotal.Inc() }
func (m *GatewayMetrics) IncRateLimitDenied()  { m.ratelimitDeniedTotal.Inc() }
func (m *GatewayMetrics) IncProxied(cls string) { m.proxiedTotal.WithLabelValues(cls).Inc() }
func (m *GatewayMetrics) IncTxLookup(outcome string) {
	m.txLookupTotal.WithLabelValues(outcome).Inc()
}

func (m *GatewayMetrics) observe(method, route string, status int, bytes int64, seconds float64) {
	code := fmt.Sprintf("%d", status)
	m.reqTotal.WithLabelValues(method, route, code).Inc()
	m.reqDur.WithLabelValues(method, route).Observe(seconds)
	m.respBytes.WithLabelValues(method, route).Observe(float64(bytes))
}
