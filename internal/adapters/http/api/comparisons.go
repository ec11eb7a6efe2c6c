package api

import (
	"net/http"

	"github.com/okian/trajan/internal/domain/compare"
)

// ComparisonsHandler serves hypothesis results.
type ComparisonsHandler struct {
	results Results
}

// NewComparisonsHandler creates a new comparisons handler.
func NewComparisonsHandler(results Results) *ComparisonsHandler {
	return &ComparisonsHandler{results: results}
}

type intervalResponse struct {
	Value *float64 `json:"value"`
	Lower *float64 `json:"lower"`
	Upper *float64 `json:"upper"`
}

func newInterval(i compare.Interval) *intervalResponse {
	if number(i.Value) == nil {
		return nil
	}
	return &intervalResponse{Value: number(i.Value), Lower: number(i.Lower), Upper: number(i.Upper)}
}

type comparisonResponse struct {
	Hypothesis  string            `json:"hypothesis"`
	Kind        string            `json:"kind"`
	Feature     string            `json:"feature,omitempty"`
	Cohorts     []string          `json:"cohorts,omitempty"`
	Sizes       []int             `json:"sizes,omitempty"`
	Means       []*float64        `json:"means,omitempty"`
	SDs         []*float64        `json:"sds,omitempty"`
	Skipped     int               `json:"skipped"`
	Difference  *intervalResponse `json:"difference,omitempty"`
	StatName    string            `json:"statistic_name,omitempty"`
	Statistic   *float64          `json:"statistic"`
	DF          *float64          `json:"df,omitempty"`
	DF2         *float64          `json:"df2,omitempty"`
	PValue      *float64          `json:"p_value"`
	Alternative string            `json:"alternative"`
	Significant bool              `json:"significant"`
	EffectName  string            `json:"effect_name,omitempty"`
	Effect      *float64          `json:"effect,omitempty"`
	Magnitude   string            `json:"magnitude,omitempty"`
	HedgesG     *float64          `json:"hedges_g,omitempty"`
	GlassDelta  *float64          `json:"glass_delta,omitempty"`
	Normality   *float64          `json:"normality_p,omitempty"`
	OddsRatio   *intervalResponse `json:"odds_ratio,omitempty"`
	RiskRatio   *intervalResponse `json:"risk_ratio,omitempty"`
	Status      string            `json:"status"`
	Reason      string            `json:"reason,omitempty"`
}

func newComparisonResponse(r compare.Result) comparisonResponse {
	return comparisonResponse{
		Hypothesis:  r.Hypothesis,
		Kind:        string(r.Kind),
		Feature:     r.Feature,
		Cohorts:     r.Cohorts,
		Sizes:       r.Sizes,
		Means:       numbers(r.Means),
		SDs:         numbers(r.SDs),
		Skipped:     r.Skipped,
		Difference:  newInterval(r.Difference),
		StatName:    r.StatName,
		Statistic:   number(r.Statistic),
		DF:          number(r.DF),
		DF2:         number(r.DF2),
		PValue:      number(r.PValue),
		Alternative: r.Alternative.String(),
		Significant: r.Significant,
		EffectName:  r.EffectName,
		Effect:      number(r.Effect),
		Magnitude:   string(r.Magnitude),
		HedgesG:     number(r.HedgesG),
		GlassDelta:  number(r.GlassDelta),
		Normality:   number(r.Normality),
		OddsRatio:   newInterval(r.OddsRatio),
		RiskRatio:   newInterval(r.RiskRatio),
		Status:      string(r.Status),
		Reason:      r.Reason,
	}
}

// HandleGetComparisons handles GET /comparisons requests.
func (h *ComparisonsHandler) HandleGetComparisons(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	results, err := h.results.Comparisons(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "not_ready", err)
		return
	}
	out := make([]comparisonResponse, len(results))
	for i, res := range results {
		out[i] = newComparisonResponse(res)
	}
	writeJSON(w, http.StatusOK, out)
}
