package cfg

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"testing"
)

func wantErrContains(t *testing.T, err error, sub string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error containing %q, got <nil>", sub)
	}
	if !strings.Contains(err.Error(), sub) {
		t.Fatalf("error %q does not contain %q", err.Error(), sub)
	}
}

// newTestConfig registers flags on a fresh FlagSet, parses the given args,
// and returns the resulting App. This isolates each test from flag.CommandLine.
func newTestConfig(t *testing.T, args []string) App {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var c App
	Register(fs, &c)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("flag parse: %v", err)
	}
	return c
}

func TestRegister_Defaults(t *testing.T) {
	c := newTestConfig(t, nil)

	if !c.LogJSON {
		t.Error("LogJSON: want true")
	}
	if c.LogLevel != "info" {
		t.Errorf("LogLevel: want %q, got %q", "info", c.LogLevel)
	}
	if c.HTTPPort != 8080 {
		t.Errorf("HTTPPort: want 8080, got %d", c.HTTPPort)
	}
	if c.AdminPort != 9000 {
		t.Errorf("AdminPort: want 9000, got %d", c.AdminPort)
	}
	if c.Degraded {
		t.Error("Degraded: want false")
	}
	if c.EnableDocSync {
		t.Error("EnableDocSync: want false")
	}
	if !c.EnablePprof {
		t.Error("EnablePprof: want true")
	}
	if c.EnablePyroscope {
		t.Error("EnablePyroscope: want false")
	}
	if c.EnableTracing {
		t.Error("EnableTracing: want false")
	}
	if c.RateLimitRPS != 25 {
		t.Errorf("RateLimitRPS: want 25, got %f", c.RateLimitRPS)
	}
	if c.RateLimitBurst != 50 {
		t.Errorf("RateLimitBurst: want 50, got %d", c.RateLimitBurst)
	}
}

func TestRegister_CLIOverrides(t *testing.T) {
	c := newTestConfig(t, []string{
		"-log-json=false",
		"-log-level=debug",
		"-http-port=9090",
		"-admin-port=9100",
		"-degraded=true",
		"-proxy-target=http://origin:3000",
		"-doc-root=/tmp/docs",
		"-database-url=postgres://u:p@db/app",
		"-enable-doc-sync=true",
		"-docs-ssm-param=/custom/param",
		"-docs-s3-bucket=my-bucket",
		"-docs-s3-prefix=my/prefix",
		"-rate-limit-rps=5",
		"-rate-limit-burst=10",
		"-production=true",
	})

	if c.LogJSON != false {
		t.Error("LogJSON: want false")
	}
	if c.LogLevel != "debug" {
		t.Errorf("LogLevel: want %q, got %q", "debug", c.LogLevel)
	}
	if c.HTTPPort != 9090 {
		t.Errorf("HTTPPort: want 9090, got %d", c.HTTPPort)
	}
	if c.AdminPort != 9100 {
		t.Errorf("AdminPort: want 9100, got %d", c.AdminPort)
	}
	if !c.Degraded {
		t.Error("Degraded: want true")
	}
	if c.ProxyTarget != "http://origin:3000" {
		t.Errorf("ProxyTarget: want %q, got %q", "http://origin:3000", c.ProxyTarget)
	}
	if c.DocRoot != "/tmp/docs" {
		t.Errorf("DocRoot: want %q, got %q", "/tmp/docs", c.DocRoot)
	}
	if c.DatabaseURL != "postgres://u:p@db/app" {
		t.Errorf("DatabaseURL: got %q", c.DatabaseURL)
	}
	if !c.EnableDocSync {
		t.Error("EnableDocSync: want true")
	}
	if c.DocsSSMParam != "/custom/param" {
		t.Errorf("DocsSSMParam: want %q, got %q", "/custom/param", c.DocsSSMParam)
	}
	if c.DocsS3Bucket != "my-bucket" {
		t.Errorf("DocsS3Bucket: want %q, got %q", "my-bucket", c.DocsS3Bucket)
	}
	if c.DocsS3Prefix != "my/prefix" {
		t.Errorf("DocsS3Prefix: want %q, got %q", "my/prefix", c.DocsS3Prefix)
	}
	if c.RateLimitRPS != 5 {
		t.Errorf("RateLimitRPS: want 5, got %f", c.RateLimitRPS)
	}
	if c.RateLimitBurst != 10 {
		t.Errorf("RateLimitBurst: want 10, got %d", c.RateLimitBurst)
	}
	if !c.Production {
		t.Error("Production: want true")
	}
}

func TestFillFromEnv(t *testing.T) {
	pfx := "TESTCFG_"
	t.Setenv(pfx+"LOG_JSON", "false")
	t.Setenv(pfx+"LOG_LEVEL", "debug")
	t.Setenv(pfx+"HTTP_PORT", "8088")
	t.Setenv(pfx+"ADMIN_PORT", "9100")
	t.Setenv(pfx+"DEGRADED", "true")
	t.Setenv(pfx+"PROXY_TARGET", "http://origin:3000")
	t.Setenv(pfx+"DATABASE_URL", "postgres://u:p@db/app")
	t.Setenv(pfx+"ENABLE_PPROF", "false")
	t.Setenv(pfx+"RATE_LIMIT_RPS", "12.5")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var c App
	Register(fs, &c)
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("flag parse: %v", err)
	}
	FillFromEnv(fs, pfx, nil)

	if c.LogJSON != false {
		t.Error("LogJSON: want false from env")
	}
	if c.LogLevel != "debug" {
		t.Errorf("LogLevel: want %q, got %q", "debug", c.LogLevel)
	}
	if c.HTTPPort != 8088 {
		t.Errorf("HTTPPort: want 8088, got %d", c.HTTPPort)
	}
	if c.AdminPort != 9100 {
		t.Errorf("AdminPort: want 9100, got %d", c.AdminPort)
	}
	if !c.Degraded {
		t.Error("Degraded: want true from env")
	}
	if c.ProxyTarget != "http://origin:3000" {
		t.Errorf("ProxyTarget: got %q", c.ProxyTarget)
	}
	if c.DatabaseURL != "postgres://u:p@db/app" {
		t.Errorf("DatabaseURL: got %q", c.DatabaseURL)
	}
	if c.EnablePprof != false {
		t.Error("EnablePprof: want false from env")
	}
	if c.RateLimitRPS != 12.5 {
		t.Errorf("RateLimitRPS: want 12.5, got %f", c.RateLimitRPS)
	}
}

func TestFillFromEnv_CLITakesPrecedence(t *testing.T) {
	pfx := "TESTCFG2_"
	t.Setenv(pfx+"HTTP_PORT", "7777")
	t.Setenv(pfx+"LOG_LEVEL", "warn")
	t.Setenv(pfx+"ENABLE_PPROF", "false")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var c App
	Register(fs, &c)
	if err := fs.Parse([]string{"-http-port=9090", "-log-level=debug", "-enable-pprof=true"}); err != nil {
		t.Fatalf("flag parse: %v", err)
	}

	var overrideMessages []string
	FillFromEnv(fs, pfx, func(format string, args ...any) {
		overrideMessages = append(overrideMessages, fmt.Sprintf(format, args...))
	})

	// CLI wins
	if c.HTTPPort != 9090 {
		t.Errorf("HTTPPort: want 9090 (cli), got %d", c.HTTPPort)
	}
	if c.LogLevel != "debug" {
		t.Errorf("LogLevel: want %q (cli), got %q", "debug", c.LogLevel)
	}
	if c.EnablePprof != true {
		t.Error("EnablePprof: want true (cli)")
	}

	// Should have logged override messages for all three
	if len(overrideMessages) != 3 {
		t.Errorf("expected 3 override messages, got %d: %v", len(overrideMessages), overrideMessages)
	}
	for _, msg := range overrideMessages {
		if !strings.Contains(msg, "overrides env") {
			t.Errorf("unexpected override message format: %s", msg)
		}
	}
}

func TestFillFromEnv_InvalidEnvIgnored(t *testing.T) {
	pfx := "TESTCFG3_"
	t.Setenv(pfx+"HTTP_PORT", "not-a-number")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var c App
	Register(fs, &c)
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("flag parse: %v", err)
	}

	var logMessages []string
	FillFromEnv(fs, pfx, func(format string, args ...any) {
		logMessages = append(logMessages, fmt.Sprintf(format, args...))
	})

	// Should keep default, not crash
	if c.HTTPPort != 8080 {
		t.Errorf("HTTPPort: want 8080 (default), got %d", c.HTTPPort)
	}
	// Should have logged the error
	if len(logMessages) != 1 {
		t.Fatalf("expected 1 log message, got %d: %v", len(logMessages), logMessages)
	}
	if !strings.Contains(logMessages[0], "ignoring invalid env") {
		t.Errorf("unexpected log message: %s", logMessages[0])
	}
}

func TestValidate_OK(t *testing.T) {
	c := newTestConfig(t, []string{
		"-proxy-target=http://origin:3000",
		"-database-url=postgres://u:p@db/app",
		"-enable-pyroscope=true",
		"-pyro-server=https://pyro:4040",
		"-pyro-tenant=test-tenant",
		"-enable-tracing=true",
		"-otlp-endpoint=otel:4317",
		"-trace-sample=0.2",
	})
	if err := Validate(c); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
}

func TestValidate_DegradedSkipsUpstreamRequirements(t *testing.T) {
	c := newTestConfig(t, []string{"-degraded=true"})
	if err := Validate(c); err != nil {
		t.Fatalf("Validate() unexpected error in degraded mode: %v", err)
	}
}

func TestValidate_MissingUpstreamConfig(t *testing.T) {
	c := newTestConfig(t, nil)
	err := Validate(c)
	wantErrContains(t, err, "PROXY_TARGET is required")
	wantErrContains(t, err, "DATABASE_URL is required")
}

func TestValidate_InvalidCombined(t *testing.T) {
	c := newTestConfig(t, []string{
		"-http-port=0",
		"-admin-port=70000",
		"-log-level=nope",
		"-proxy-target=not-a-url",
		"-database-url=postgres://u:p@db/app",
		"-trace-sample=2.0",
		"-enable-pyroscope=true",
		"-pyro-server=also-not-a-url",
		"-enable-tracing=true",
		"-otlp-endpoint=otel",
		"-rate-limit-rps=0",
		"-rate-limit-burst=0",
		"-enable-doc-sync=true",
		"-docs-s3-bucket=",
	})

	err := Validate(c)
	if err == nil {
		t.Fatal("Validate() expected errors, got <nil>")
	}

	wantErrContains(t, err, "invalid HTTP_PORT")
	wantErrContains(t, err, "invalid ADMIN_PORT")
	wantErrContains(t, err, "invalid LOG_LEVEL")
	wantErrContains(t, err, "PROXY_TARGET must be a URL")
	wantErrContains(t, err, "invalid TRACE_SAMPLE")
	wantErrContains(t, err, "PYRO_SERVER must be a URL")
	wantErrContains(t, err, "OTLP_ENDPOINT must be host:port")
	wantErrContains(t, err, "RATE_LIMIT_RPS")
	wantErrContains(t, err, "RATE_LIMIT_BURST")
	wantErrContains(t, err, "DOCS_S3_BUCKET is required")
}

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}
