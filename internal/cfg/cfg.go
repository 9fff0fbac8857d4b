package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/keithlinneman/chaingate/internal/log"
)

type App struct {
	LogJSON         bool
	LogLevel        string
	HTTPPort        int
	AdminPort       int
	Degraded        bool
	ProxyTarget     string
	DocRoot         string
	DatabaseURL     string
	EnableDocSync   bool
	DocsSSMParam    string
	DocsS3Bucket    string
	DocsS3Prefix    string
	EnablePprof     bool
	EnablePyroscope bool
	EnableTracing   bool
	PyroServer      string
	PyroTenantID    string
	OTLPEndpoint    string
	TraceSample     float64
	RateLimitRPS    float64
	RateLimitBurst  int
	Production      bool
}

// Register binds all config fields to the given FlagSet with defaults inline
func Register(fs *flag.FlagSet, c *App) {
	fs.BoolVar(&c.LogJSON, "log-json", true, "JSON logs (true) or logfmt (false)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug|info|warn|error")
	fs.IntVar(&c.HTTPPort, "http-port", 8080, "listen TCP port (1..65535)")
	fs.IntVar(&c.AdminPort, "admin-port", 9000, "admin listen TCP port (1..65535)")
	fs.BoolVar(&c.Degraded, "degraded", false, "serve health checks only; skip database, docs and proxy wiring")
	fs.StringVar(&c.ProxyTarget, "proxy-target", "", "base URL of the upstream service unmatched requests are forwarded to")
	fs.StringVar(&c.DocRoot, "doc-root", "/srv/chaingate/docs", "directory the documentation bundle is served from")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "postgres connection string for transaction lookups")
	fs.BoolVar(&c.EnableDocSync, "enable-doc-sync", false, "fetch the documentation bundle from S3/SSM at startup")
	fs.StringVar(&c.DocsSSMParam, "docs-ssm-param", "/app/chaingate/docs/stable/release/id", "ssm parameter name holding the doc bundle digest")
	fs.StringVar(&c.DocsS3Bucket, "docs-s3-bucket", "", "s3 bucket name to get the doc bundle from")
	fs.StringVar(&c.DocsS3Prefix, "docs-s3-prefix", "apps/chaingate/docs/bundles", "s3 prefix (key) to get the doc bundle from")
	fs.BoolVar(&c.EnablePprof, "enable-pprof", true, "Enable pprof profiling (on admin port only)")
	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "Enable OTLP tracing and push to otlp-endpoint")
	fs.BoolVar(&c.EnablePyroscope, "enable-pyroscope", false, "Enable pushing Pyroscope data to server set in -pyro-server")
	fs.StringVar(&c.PyroServer, "pyro-server", "", "pyroscope server url to push to")
	fs.StringVar(&c.PyroTenantID, "pyro-tenant", "", "tenant (x-scope-orgid) to use for pyro-server")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP endpoint to push to (gRPC) (host:port)")
	fs.Float64Var(&c.TraceSample, "trace-sample", 0.0, "trace sampling ratio (0..1)")
	fs.Float64Var(&c.RateLimitRPS, "rate-limit-rps", 25, "per-client sustained requests per second")
	fs.IntVar(&c.RateLimitBurst, "rate-limit-burst", 50, "per-client burst allowance")
	fs.BoolVar(&c.Production, "production", false, "production deployment; disables per-request proxy debug logging")
}

// FillFromEnv sets any flag not explicitly passed on the CLI from
// environment variables. Flag "foo-bar" maps to PREFIX_FOO_BAR.
// Precedence: cli flag > env var > default.
func FillFromEnv(fs *flag.FlagSet, prefix string, logf func(string, ...any)) {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	fs.VisitAll(func(f *flag.Flag) {
		key := prefix + strings.ReplaceAll(strings.ToUpper(f.Name), "-", "_")
		envVal, envSet := os.LookupEnv(key)
		if !envSet {
			return
		}
		if explicit[f.Name] {
			if logf != nil {
				logf("flag -%s: cli value %q overrides env %s=%q", f.Name, f.Value.String(), key, envVal)
			}
			return
		}
		prev := f.Value.String()
		if err := fs.Set(f.Name, envVal); err != nil {
			fs.Set(f.Name, prev)
			if logf != nil {
				logf("flag -%s: ignoring invalid env %s=%q: %v", f.Name, key, envVal, err)
			}
		}
	})
}

// Validate checks that config values are within expected ranges and formats.
// Returns an error describing all invalid fields, or nil if all valid.
func Validate(c App) error {
	var errs []error

	// Ports
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.HTTPPort))
	}
	if c.AdminPort < 1 || c.AdminPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid ADMIN_PORT %d (must be 1..65535)", c.AdminPort))
	}
	if c.AdminPort == c.HTTPPort {
		errs = append(errs, fmt.Errorf("ADMIN_PORT and HTTP_PORT must differ (both %d)", c.HTTPPort))
	}

	// Log level
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err))
	}

	// Tracing sample
	if c.TraceSample < 0 || c.TraceSample > 1 {
		errs = append(errs, fmt.Errorf("invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample))
	}

	// Rate limiting
	if c.RateLimitRPS <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_RPS must be > 0 (got %.2f)", c.RateLimitRPS))
	}
	if c.RateLimitBurst < 1 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_BURST must be >= 1 (got %d)", c.RateLimitBurst))
	}

	// In degraded mode only health checks run; the upstream, database
	// and doc bundle are all optional there.
	if !c.Degraded {
		if c.ProxyTarget == "" {
			errs = append(errs, fmt.Errorf("PROXY_TARGET is required"))
		} else if u, err := url.Parse(c.ProxyTarget); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("PROXY_TARGET must be a URL (got %q)", c.ProxyTarget))
		}
		if c.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("DATABASE_URL is required"))
		}
		if c.DocRoot == "" {
			errs = append(errs, fmt.Errorf("DOC_ROOT is required"))
		}
	}

	// Pyroscope (URL and scheme)
	if c.EnablePyroscope {
		if c.PyroServer == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER required when ENABLE_PYROSCOPE=true"))
		} else if u, err := url.Parse(c.PyroServer); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER must be a URL (got %q)", c.PyroServer))
		}
		if c.PyroTenantID == "" {
			errs = append(errs, fmt.Errorf("PYRO_TENANT required when ENABLE_PYROSCOPE=true"))
		}
	}

	// OTLP tracing (grpc exporter wants host:port, no scheme)
	if c.EnableTracing {
		if c.OTLPEndpoint == "" {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT required when ENABLE_TRACING=true"))
		} else if _, _, err := net.SplitHostPort(c.OTLPEndpoint); err != nil {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT must be host:port (got %q): %v", c.OTLPEndpoint, err))
		}
	}

	if c.EnableDocSync {
		if c.DocsSSMParam == "" {
			errs = append(errs, fmt.Errorf("DOCS_SSM_PARAM is required when ENABLE_DOC_SYNC=true"))
		}
		if c.DocsS3Bucket == "" {
			errs = append(errs, fmt.Errorf("DOCS_S3_BUCKET is required when ENABLE_DOC_SYNC=true"))
		}
		if c.DocsS3Prefix == "" {
			errs = append(errs, fmt.Errorf("DOCS_S3_PREFIX is required when ENABLE_DOC_SYNC=true"))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
