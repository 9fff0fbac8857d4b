package opshttp

import (
	"net/http"

	"github.com/keithlinneman/chaingate/internal/health"
)

// HealthzHandler answers liveness. The process is alive if it can serve
// this request, so a nil probe always passes.
func HealthzHandler(p health.Probe) http.Handler {
	return probeHandler(p, "healthy", "unhealthy")
}

// ReadyzHandler answers readiness. Flips to 503 while draining or while
// a dependency check fails so the load balancer pulls us from rotation.
func ReadyzHandler(p health.Probe) http.Handler {
	return probeHandler(p, "ready", "not ready")
}

func probeHandler(p health.Probe, okText, failText string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		if p != nil {
			if err := p.Check(r.Context()); err != nil {
				http.Error(w, failText+": "+err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(okText + "\n"))
	})
}
