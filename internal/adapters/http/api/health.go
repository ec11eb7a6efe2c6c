package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/trajan/pkg/metrics"
)

// StatsProvider reports the pipeline state served on /stats.
type StatsProvider interface {
	GetStats() map[string]any
}

// HealthHandler serves the operational endpoints: /healthz exposes the
// pipeline registry, /stats the service snapshot.
type HealthHandler struct {
	metrics http.Handler
	stats   StatsProvider
}

// NewHealthHandler creates a health handler over the given stats provider.
func NewHealthHandler(stats StatsProvider) *HealthHandler {
	return &HealthHandler{
		metrics: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
		stats:   stats,
	}
}

// HandleHealth writes the Prometheus exposition.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}

// HandleStats writes the stats snapshot as JSON. Only GET is routed.
func (h *HealthHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.stats.GetStats())
}
