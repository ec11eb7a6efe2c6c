package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/trajan/internal/domain/model"
)

// RecordsHandler serves feature records.
type RecordsHandler struct {
	results Results
}

// NewRecordsHandler creates a new records handler.
func NewRecordsHandler(results Results) *RecordsHandler {
	return &RecordsHandler{results: results}
}

type recordResponse struct {
	EpisodeID       string            `json:"episode_id"`
	AgentID         string            `json:"agent_id"`
	Category        string            `json:"category,omitempty"`
	Side            string            `json:"side,omitempty"`
	Frames          int               `json:"frames"`
	Outcome         string            `json:"outcome,omitempty"`
	DurationBin     string            `json:"duration_bin,omitempty"`
	Role            string            `json:"role,omitempty"`
	Rank            int               `json:"rank,omitempty"`
	Credited        string            `json:"credited,omitempty"`
	NearestOpponent string            `json:"nearest_opponent,omitempty"`
	Tags            map[string]string `json:"tags,omitempty"`

	// Metrics maps column names to a number, or to the status marker of a
	// value that could not be measured.
	Metrics map[string]any `json:"metrics"`
}

func newRecordResponse(rec model.FeatureRecord) recordResponse {
	out := recordResponse{
		EpisodeID:       rec.EpisodeID,
		AgentID:         rec.AgentID,
		Category:        rec.Category,
		Side:            rec.Side,
		Frames:          rec.Frames,
		Outcome:         string(rec.Outcome),
		DurationBin:     rec.DurationBin,
		Role:            string(rec.Role),
		Rank:            rec.Rank,
		Credited:        string(rec.Credited),
		NearestOpponent: rec.NearestOpponent,
		Tags:            rec.Tags,
		Metrics:         make(map[string]any),
	}
	for _, name := range model.Columns() {
		m, _ := rec.Lookup(name)
		switch {
		case !m.Tagged():
			continue
		case !m.OK():
			out.Metrics[name] = string(m.Status)
		default:
			if v := number(m.Value); v != nil {
				out.Metrics[name] = *v
			}
		}
	}
	return out
}

// HandleGetRecords handles GET /records?episode=&agent= requests.
func (h *RecordsHandler) HandleGetRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	episodeID := strings.TrimSpace(q.Get("episode"))
	agentID := strings.TrimSpace(q.Get("agent"))

	records, err := h.results.Records(r.Context(), episodeID, agentID)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "not_ready", err)
		return
	}
	if len(records) == 0 && (episodeID != "" || agentID != "") {
		writeError(w, http.StatusNotFound, "not_found",
			fmt.Errorf("%w: episode %q agent %q", ErrNotFound, episodeID, agentID))
		return
	}

	out := make([]recordResponse, len(records))
	for i, rec := range records {
		out[i] = newRecordResponse(rec)
	}
	writeJSON(w, http.StatusOK, out)
}
