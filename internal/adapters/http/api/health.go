package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/vinyl/pkg/metrics"
)

// StatsProvider exposes the runtime counters behind /healthz and /stats.
// The "started" key gates readiness.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatusHandler answers the operational endpoints.
type StatusHandler struct {
	stats StatsProvider
}

// NewStatusHandler creates a StatusHandler reading from stats.
func NewStatusHandler(stats StatsProvider) *StatusHandler {
	return &StatusHandler{stats: stats}
}

// HandleHealth handles GET /healthz. It answers 503 until the service has
// started.
func (h *StatusHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	if started, _ := h.stats.GetStats()["started"].(bool); !started {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleStats handles GET /stats. Counters that need a running service are
// omitted before start.
func (h *StatusHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.stats.GetStats())
}

// MetricsHandler serves the Prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})
}
