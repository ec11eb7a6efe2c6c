// Package api serves the results of the last pipeline run over HTTP.
package api

import (
	"context"
	"encoding/json"
	"math"
	"net/http"

	"github.com/okian/trajan/internal/domain/compare"
	"github.com/okian/trajan/internal/domain/model"
)

// Results gives handlers read access to the last completed run.
type Results interface {
	// Records returns the records matching both ids; empty ids match all.
	Records(ctx context.Context, episodeID, agentID string) ([]model.FeatureRecord, error)
	Comparisons(ctx context.Context) ([]compare.Result, error)
}

// Server wires HTTP routes for the results API.
type Server struct {
	healthHandler      *HealthHandler
	recordsHandler     *RecordsHandler
	comparisonsHandler *ComparisonsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(results Results, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(statsProvider),
		recordsHandler:     NewRecordsHandler(results),
		comparisonsHandler: NewComparisonsHandler(results),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.healthHandler.HandleStats, "stats"))
	mux.HandleFunc("/records", MetricsMiddleware(s.recordsHandler.HandleGetRecords, "records"))
	mux.HandleFunc("/comparisons", MetricsMiddleware(s.comparisonsHandler.HandleGetComparisons, "comparisons"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// number drops NaN and infinities, which JSON cannot carry.
func number(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func numbers(vs []float64) []*float64 {
	if len(vs) == 0 {
		return nil
	}
	out := make([]*float64, len(vs))
	for i, v := range vs {
		out[i] = number(v)
	}
	return out
}
