package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/trajan/internal/adapters/http/api"
	"github.com/okian/trajan/internal/domain/compare"
	"github.com/okian/trajan/internal/domain/model"
)

var errNotRun = errors.New("no completed run")

type mockResults struct {
	records     []model.FeatureRecord
	comparisons []compare.Result
	err         error
}

func (m *mockResults) Records(_ context.Context, episodeID, agentID string) ([]model.FeatureRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []model.FeatureRecord
	for _, r := range m.records {
		if (episodeID == "" || r.EpisodeID == episodeID) && (agentID == "" || r.AgentID == agentID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockResults) Comparisons(context.Context) ([]compare.Result, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.comparisons, nil
}

type mockStatsProvider struct {
	stats map[string]any
}

func (m *mockStatsProvider) GetStats() map[string]any {
	return m.stats
}

func sampleResults() *mockResults {
	primary := model.FeatureRecord{
		EpisodeID: "g1-p1",
		AgentID:   "d1",
		Category:  "CB",
		Side:      "defense",
		Frames:    12,
		Outcome:   "C",
		Tags:      map[string]string{"target_agent": "o1"},
	}.WithRole(model.RolePrimary, 1)
	primary.RefDistance.Last = model.Measured(model.OpDistanceToPoint, 1.5)
	primary.RefDistanceCorr = model.Undefined(model.OpDistanceToPoint)

	help := model.FeatureRecord{EpisodeID: "g1-p1", AgentID: "d2", Side: "defense", Frames: 12}.WithRole(model.RoleHelp, 2).WithCredit(model.CreditNo)
	other := model.FeatureRecord{EpisodeID: "g1-p2", AgentID: "d1", Side: "defense", Frames: 2}
	other.SpeedSD = model.Insufficient(model.OpSpeed)

	return &mockResults{
		records: []model.FeatureRecord{primary, help, other},
		comparisons: []compare.Result{
			{
				Hypothesis: "separation_by_role",
				Kind:       compare.KindMeans,
				Cohorts:    []string{"PRIMARY", "HELP"},
				Sizes:      []int{10, 30},
				Means:      []float64{1.2, math.NaN()},
				Statistic:  2.5,
				PValue:     0.01,
				Effect:     math.NaN(),
				HedgesG:    0.61,
				GlassDelta: math.NaN(),
				Normality:  math.NaN(),
				Difference: compare.Interval{Value: math.NaN(), Lower: math.NaN(), Upper: math.NaN()},
				OddsRatio:  compare.Interval{Value: 2, Lower: 1.1, Upper: 3.6},
				Status:     compare.StatusOK,
			},
		},
	}
}

func serve(mux *http.ServeMux, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestServer_Register(t *testing.T) {
	Convey("Given a new API server over a completed run", t, func() {
		stats := &mockStatsProvider{stats: map[string]any{"runId": "r-1", "records": 3}}
		server := api.NewServer(sampleResults(), stats)
		mux := http.NewServeMux()
		server.Register(context.Background(), mux)

		Convey("Health serves the pipeline metrics", func() {
			w := serve(mux, http.MethodGet, "/healthz")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "trajan_pipeline_")
		})

		Convey("Stats returns the provider snapshot", func() {
			w := serve(mux, http.MethodGet, "/stats")
			So(w.Code, ShouldEqual, http.StatusOK)
			var body map[string]any
			So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
			So(body["runId"], ShouldEqual, "r-1")
			So(body["records"], ShouldEqual, float64(3))
		})

		Convey("Non-GET requests are not routed", func() {
			So(serve(mux, http.MethodPost, "/stats").Code, ShouldEqual, http.StatusNotFound)
			So(serve(mux, http.MethodDelete, "/records").Code, ShouldEqual, http.StatusNotFound)
			So(serve(mux, http.MethodPut, "/comparisons").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Unknown paths are not found", func() {
			So(serve(mux, http.MethodGet, "/unknown").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestRecordsHandler(t *testing.T) {
	Convey("Given a records handler", t, func() {
		mux := http.NewServeMux()
		api.NewServer(sampleResults(), &mockStatsProvider{}).Register(context.Background(), mux)

		Convey("All records are listed without filters", func() {
			w := serve(mux, http.MethodGet, "/records")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
			var body []map[string]any
			So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
			So(body, ShouldHaveLength, 3)
		})

		Convey("Filters narrow by episode and agent", func() {
			w := serve(mux, http.MethodGet, "/records?episode=g1-p1&agent=d1")
			So(w.Code, ShouldEqual, http.StatusOK)
			var body []map[string]any
			So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
			So(body, ShouldHaveLength, 1)

			rec := body[0]
			So(rec["episode_id"], ShouldEqual, "g1-p1")
			So(rec["role"], ShouldEqual, "PRIMARY")
			So(rec["rank"], ShouldEqual, float64(1))
			So(rec["outcome"], ShouldEqual, "C")
			So(rec, ShouldNotContainKey, "credited")
			So(rec["tags"], ShouldResemble, map[string]any{"target_agent": "o1"})

			m := rec["metrics"].(map[string]any)
			So(m["distance_to_point.last"], ShouldEqual, 1.5)
			So(m["distance_to_point.corr"], ShouldEqual, "undefined")
			So(m, ShouldNotContainKey, "kinematic_speed.mean")
		})

		Convey("Credit is reported once assigned", func() {
			w := serve(mux, http.MethodGet, "/records?agent=d2")
			var body []map[string]any
			So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
			So(body, ShouldHaveLength, 1)
			So(body[0]["role"], ShouldEqual, "HELP")
			So(body[0]["credited"], ShouldEqual, "no")
		})

		Convey("Unmeasured metrics report their status", func() {
			w := serve(mux, http.MethodGet, "/records?episode=g1-p2")
			var body []map[string]any
			So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
			So(body, ShouldHaveLength, 1)
			So(body[0], ShouldNotContainKey, "role")
			So(body[0], ShouldNotContainKey, "credited")
			So(body[0]["metrics"], ShouldResemble, map[string]any{"kinematic_speed.sd": "insufficient"})
		})

		Convey("A filter matching nothing is not found", func() {
			w := serve(mux, http.MethodGet, "/records?agent=nobody")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(w.Body.String(), ShouldContainSubstring, `"code":"not_found"`)
		})
	})

	Convey("Given no completed run", t, func() {
		mux := http.NewServeMux()
		api.NewServer(&mockResults{err: errNotRun}, &mockStatsProvider{}).Register(context.Background(), mux)

		Convey("Records and comparisons are unavailable", func() {
			w := serve(mux, http.MethodGet, "/records")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(w.Body.String(), ShouldContainSubstring, `"code":"not_ready"`)
			So(w.Body.String(), ShouldContainSubstring, errNotRun.Error())

			So(serve(mux, http.MethodGet, "/comparisons").Code, ShouldEqual, http.StatusServiceUnavailable)
		})
	})
}

func TestComparisonsHandler(t *testing.T) {
	Convey("Given a comparisons handler", t, func() {
		mux := http.NewServeMux()
		api.NewServer(sampleResults(), &mockStatsProvider{}).Register(context.Background(), mux)

		Convey("Results are listed with undefined numbers as null", func() {
			w := serve(mux, http.MethodGet, "/comparisons")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(strings.Contains(w.Body.String(), "NaN"), ShouldBeFalse)

			var body []map[string]any
			So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
			So(body, ShouldHaveLength, 1)

			res := body[0]
			So(res["hypothesis"], ShouldEqual, "separation_by_role")
			So(res["kind"], ShouldEqual, "means")
			So(res["status"], ShouldEqual, "ok")
			So(res["p_value"], ShouldEqual, 0.01)
			So(res["means"], ShouldResemble, []any{1.2, nil})
			So(res, ShouldNotContainKey, "effect")
			So(res["hedges_g"], ShouldEqual, 0.61)
			So(res, ShouldNotContainKey, "glass_delta")
			So(res, ShouldNotContainKey, "normality_p")
			So(res, ShouldNotContainKey, "difference")
			So(res["odds_ratio"], ShouldResemble, map[string]any{"value": float64(2), "lower": 1.1, "upper": 3.6})
		})
	})
}
