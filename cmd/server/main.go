package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/keithlinneman/chaingate/internal/apihttp"
	"github.com/keithlinneman/chaingate/internal/cfg"
	"github.com/keithlinneman/chaingate/internal/dochttp"
	"github.com/keithlinneman/chaingate/internal/docsync"
	"github.com/keithlinneman/chaingate/internal/gateway"
	"github.com/keithlinneman/chaingate/internal/health"
	"github.com/keithlinneman/chaingate/internal/log"
	"github.com/keithlinneman/chaingate/internal/metrics"
	"github.com/keithlinneman/chaingate/internal/opshttp"
	"github.com/keithlinneman/chaingate/internal/otelx"
	"github.com/keithlinneman/chaingate/internal/prof"
	"github.com/keithlinneman/chaingate/internal/ratelimit"
	"github.com/keithlinneman/chaingate/internal/txhttp"
	"github.com/keithlinneman/chaingate/internal/txstore"
	v "github.com/keithlinneman/chaingate/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vi := v.Get()

	var conf cfg.App
	var showVersion bool

	// Parse config from flags and env
	cfg.Register(flag.CommandLine, &conf)
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("%s %s (commit=%s, build_date=%s, go=%s, dirty=%v)\n",
			vi.AppName, vi.Version, vi.Commit, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty,
		)
		os.Exit(0)
	}

	// Fill in config from environment variables with prefix CHAINGATE_ and validate
	cfg.FillFromEnv(flag.CommandLine, "CHAINGATE_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	// Setup logging
	lvl, err := log.ParseLevel(conf.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %s: %v\n", conf.LogLevel, err)
		os.Exit(1)
	}
	lg, err := log.New(log.Options{
		App:        v.AppName,
		Level:      lvl,
		JsonFormat: conf.LogJSON,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		os.Exit(1)
	}
	defer lg.Sync()
	L := lg.With("component", "server")
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_date", vi.BuildDate,
		"go_version", vi.GoVersion,
		"vcs_dirty", vi.VCSDirty,
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
		"degraded", conf.Degraded,
		"production", conf.Production,
		"proxy_target", conf.ProxyTarget,
		"doc_root", conf.DocRoot,
		"enable_doc_sync", conf.EnableDocSync,
		"enable_pprof", conf.EnablePprof,
		"enable_pyroscope", conf.EnablePyroscope,
		"enable_tracing", conf.EnableTracing,
		"otlp_endpoint", conf.OTLPEndpoint,
		"trace_sample", conf.TraceSample,
	)

	// Setup pyroscope profiling
	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       v.AppName,
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags: map[string]string{
			"app":       v.AppName,
			"component": "server",
			"version":   vi.Version,
			"commit":    vi.Commit,
			"source":    "go-agent",
		},
	})
	if err != nil {
		L.Error(ctx, err, "pyroscope start failed", "pyro_server", conf.PyroServer)
	}
	defer func() { stopProf() }()

	// Setup otel for tracing
	// Insecure is true because we are only writing to a collector on localhost
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:  conf.EnableTracing,
		Endpoint: conf.OTLPEndpoint,
		Insecure: true,
		Sample:   conf.TraceSample,
		Service:  v.AppName,
		Version:  vi.Version,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}
	defer func() { _ = shutdownOTEL(context.Background()) }()

	m := metrics.New()
	m.SetBuildInfo("server", vi)

	// setup toggle for server shutdown
	var gate health.ShutdownGate
	readyChecks := []health.Probe{gate.Probe()}

	gwOpts := gateway.Options{
		Logger:        L,
		Degraded:      conf.Degraded,
		Port:          conf.HTTPPort,
		MetricsMW:     m.Middleware,
		OnPanic:       m.IncHttpPanic,
		OnProxied:     m.IncProxied,
		DebugProxy:    !conf.Production,
		EnableTracing: conf.EnableTracing,
	}

	if !conf.Degraded {
		target, err := url.Parse(conf.ProxyTarget)
		if err != nil {
			L.Error(ctx, err, "invalid proxy target", "proxy_target", conf.ProxyTarget)
			os.Exit(1)
		}
		gwOpts.ProxyTarget = target

		// optional doc bundle refresh; failure falls back to what is on disk
		if conf.EnableDocSync {
			syncer, err := docsync.New(ctx, docsync.Options{
				Logger:   L,
				SSMParam: conf.DocsSSMParam,
				S3Bucket: conf.DocsS3Bucket,
				S3Prefix: conf.DocsS3Prefix,
				DocRoot:  conf.DocRoot,
			})
			if err != nil {
				L.Error(ctx, err, "doc sync init failed, serving existing doc root")
			} else if digest, err := syncer.Sync(ctx); err != nil {
				L.Error(ctx, err, "doc sync failed, serving existing doc root")
			} else {
				L.Info(ctx, "doc bundle synced", "digest", digest)
			}
		}
		docFS := os.DirFS(conf.DocRoot)
		gwOpts.DocFS = docFS
		readyChecks = append(readyChecks, dochttp.Probe(docFS))

		store, err := txstore.Open(ctx, conf.DatabaseURL, L)
		if err != nil {
			L.Error(ctx, err, "database open failed")
			os.Exit(1)
		}
		defer store.Close()
		readyChecks = append(readyChecks, health.CheckFunc(store.Ping))

		txAPI := txhttp.NewAPI(store, L)
		txAPI.OnLookup = m.IncTxLookup
		gwOpts.APIRoutes = []apihttp.RouteTable{txAPI}

		limiter := ratelimit.New(ctx,
			ratelimit.WithRate(conf.RateLimitRPS, conf.RateLimitBurst),
			ratelimit.WithOnDenied(func(ip string) {
				m.IncRateLimitDenied()
			}),
			ratelimit.WithOnFirstDenied(func(ip string) {
				L.Warn(ctx, "rate limit triggered", "ip", ip)
			}),
		)
		gwOpts.RateLimitMW = limiter.Middleware
	}

	readiness := health.All(readyChecks...)

	gatewayStop, err := gateway.Start(ctx, gwOpts)
	if err != nil {
		L.Error(ctx, err, "failed to start gateway listener")
		os.Exit(1)
	}
	defer func() { _ = gatewayStop(context.Background()) }()

	// admin/ops listener serves metrics, health checks and pprof
	// sg restricts inbound to internal monitoring infrastructure
	opsStop, err := opshttp.Start(ctx, L, opshttp.Options{
		Port:        conf.AdminPort,
		Metrics:     m.Handler(),
		EnablePprof: conf.EnablePprof,
		Health:      health.Fixed(true, ""),
		Readiness:   readiness,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		os.Exit(1)
	}
	defer func() { _ = opsStop(context.Background()) }()

	if err := notifySystemd(); err != nil {
		L.Warn(ctx, "failed to notify systemd of readiness", "error", err)
	}

	// block until signal so we dont exit
	sigCtx, sigStop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer sigStop()
	<-sigCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	L.Info(context.Background(), "shutdown signal received")

	// fail readiness so the load balancer stops sending new requests
	gate.Set("draining")
	L.Info(context.Background(), "shutdown gate closed, draining")

	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-time.After(30 * time.Second):
		L.Info(context.Background(), "drain period complete")
	case <-forceCh:
		L.Warn(context.Background(), "second signal received, skipping drain")
	}
	signal.Stop(forceCh)

	if err := gatewayStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "gateway shutdown")
	}
	if err := opsStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "ops http server shutdown")
	}
	if err := shutdownOTEL(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "otel shutdown")
	}
	stopProf()

	L.Info(context.Background(), "shutdown complete")
}

func notifySystemd() error {
	// systemd sets NOTIFY_SOCKET when started with type=notify
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return fmt.Errorf("NOTIFY_SOCKET not set, skipping systemd notify")
	}
	conn, err := net.Dial("unixgram", addr)
	if err != nil {
		return fmt.Errorf("systemd notify failed: dial failed: %w", err)
	}
	conn.Write([]byte("READY=1"))
	if err := conn.Close(); err != nil {
		return fmt.Errorf("systemd notify failed: close failed: %w", err)
	}
	return nil
}
