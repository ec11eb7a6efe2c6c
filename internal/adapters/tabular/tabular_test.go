package tabular_test

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/okian/trajan/internal/adapters/repository"
	"github.com/okian/trajan/internal/adapters/tabular"
	"github.com/okian/trajan/internal/domain/archetype"
	"github.com/okian/trajan/internal/domain/compare"
	"github.com/okian/trajan/internal/domain/model"
	"github.com/okian/trajan/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

const trackingFrames = `game_id,play_id,nfl_id,frame_id,player_position,player_side,x,y,s,a,dir,o
2022091200,64,101,1,WR,Offense,10,20,3.5,1.0,90,0
2022091200,64,101,2,WR,Offense,10.5,20,3.6,1.1,180,270
2022091200,64,202,1,CB,Defense,12,21,2.0,0.5,NA,45
`

const trackingMetadata = `"game_id","play_id","ball_land_x","ball_land_y","pass_result","team_coverage_type","route_of_targeted_receiver"
2022091200,64,30.5,22,C,COVER_3_ZONE,GO
2022091200,65,40,10,I,,SLANT
`

func readTable(path string) ([]string, [][]string) {
	f, err := os.Open(path)
	So(err, ShouldBeNil)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	So(err, ShouldBeNil)
	return rows[0], rows[1:]
}

func cell(head, row []string, name string) string {
	for i, h := range head {
		if h == name {
			return row[i]
		}
	}
	return "<missing>"
}

func TestSchemaAngles(t *testing.T) {
	Convey("Given the default schema of compass degrees", t, func() {
		s, err := tabular.NewSchema()
		So(err, ShouldBeNil)

		Convey("Then compass bearings map onto math angles", func() {
			So(s.Angle(0), ShouldAlmostEqual, math.Pi/2, 1e-12)
			So(s.Angle(90), ShouldAlmostEqual, 0, 1e-12)
			So(s.Angle(180), ShouldAlmostEqual, -math.Pi/2, 1e-12)
			So(math.IsNaN(s.Angle(math.NaN())), ShouldBeTrue)
		})
	})

	Convey("Given a math-radians schema", t, func() {
		s, err := tabular.NewSchema(tabular.WithAngles(tabular.Radians, tabular.Math))
		So(err, ShouldBeNil)
		So(s.Angle(1.25), ShouldEqual, 1.25)
	})

	Convey("Given an unknown unit", t, func() {
		_, err := tabular.NewSchema(tabular.WithAngles("gradians", ""))
		So(errors.Is(err, tabular.ErrInvalidSchema), ShouldBeTrue)
	})
}

func TestReadFrames(t *testing.T) {
	Convey("Given a tracking table keyed by game and play", t, func() {
		s, _ := tabular.NewSchema()
		var rows []repository.FrameRow
		err := s.ReadFrames(context.Background(), strings.NewReader(trackingFrames), func(r repository.FrameRow) error {
			rows = append(rows, r)
			return nil
		})

		Convey("Then every row is parsed with converted angles", func() {
			So(err, ShouldBeNil)
			So(len(rows), ShouldEqual, 3)
			So(rows[0].EpisodeID, ShouldEqual, "2022091200-64")
			So(rows[0].AgentID, ShouldEqual, "101")
			So(rows[0].Category, ShouldEqual, "WR")
			So(rows[0].Side, ShouldEqual, "offense")
			So(rows[1].Frame.Index, ShouldEqual, 2)
			So(rows[1].Frame.Speed, ShouldEqual, 3.6)
			So(rows[0].Frame.Heading, ShouldAlmostEqual, 0, 1e-12)
			So(rows[0].Frame.Orientation, ShouldAlmostEqual, math.Pi/2, 1e-12)
		})

		Convey("Then missing cells are NaN, not zero", func() {
			So(math.IsNaN(rows[2].Frame.Heading), ShouldBeTrue)
		})
	})

	Convey("Given a table with an episode id column and configured aliases", t, func() {
		s, _ := tabular.NewSchema(tabular.WithAliases(tabular.FieldAgent, "player"))
		data := "episode_id,player,frame,x,y,speed,acceleration,heading,orientation\ne1,p1,0,1,2,0,0,0,0\n"
		var got repository.FrameRow
		err := s.ReadFrames(context.Background(), strings.NewReader(data), func(r repository.FrameRow) error {
			got = r
			return nil
		})
		So(err, ShouldBeNil)
		So(got.EpisodeID, ShouldEqual, "e1")
		So(got.AgentID, ShouldEqual, "p1")
		So(got.Side, ShouldEqual, "")
	})

	Convey("Given malformed tables", t, func() {
		s, _ := tabular.NewSchema()
		nop := func(repository.FrameRow) error { return nil }

		err := s.ReadFrames(context.Background(), strings.NewReader("game_id,play_id,nfl_id,frame_id,x\n"), nop)
		So(errors.Is(err, tabular.ErrMissingColumn), ShouldBeTrue)

		err = s.ReadFrames(context.Background(), strings.NewReader("nfl_id,frame_id,x,y,s,a,dir,o\n"), nop)
		So(errors.Is(err, tabular.ErrMissingColumn), ShouldBeTrue)

		bad := strings.Replace(trackingFrames, "10.5,20", "ten,20", 1)
		err = s.ReadFrames(context.Background(), strings.NewReader(bad), nop)
		So(errors.Is(err, tabular.ErrParseField), ShouldBeTrue)
		So(err.Error(), ShouldContainSubstring, "line 3")
	})
}

func TestReadMetadata(t *testing.T) {
	Convey("Given a supplementary table with quoted headers", t, func() {
		s, _ := tabular.NewSchema()
		var metas []repository.Metadata
		err := s.ReadMetadata(context.Background(), strings.NewReader(trackingMetadata), func(m repository.Metadata) error {
			metas = append(metas, m)
			return nil
		})

		Convey("Then reference, outcome and tags are read", func() {
			So(err, ShouldBeNil)
			So(len(metas), ShouldEqual, 2)
			So(metas[0].EpisodeID, ShouldEqual, "2022091200-64")
			So(metas[0].Reference, ShouldResemble, model.Point{X: 30.5, Y: 22})
			So(metas[0].Outcome, ShouldEqual, model.Outcome("C"))
			So(metas[0].Tags, ShouldResemble, map[string]string{
				"team_coverage_type":         "COVER_3_ZONE",
				"route_of_targeted_receiver": "GO",
			})
			So(metas[1].Tags, ShouldResemble, map[string]string{"route_of_targeted_receiver": "SLANT"})
		})
	})
}

func TestLoad(t *testing.T) {
	Convey("Given two weekly partitions that share a row", t, func() {
		dir := t.TempDir()
		week1 := filepath.Join(dir, "input_w01.csv")
		week2 := filepath.Join(dir, "input_w02.csv")
		meta := filepath.Join(dir, "supplementary.csv")
		dup := "game_id,play_id,nfl_id,frame_id,player_position,player_side,x,y,s,a,dir,o\n" +
			"2022091200,64,101,2,WR,Offense,99,99,0,0,0,0\n" +
			"2022091200,64,202,2,CB,Defense,12.5,21,2.0,0.5,10,45\n"
		So(os.WriteFile(week1, []byte(trackingFrames), 0o644), ShouldBeNil)
		So(os.WriteFile(week2, []byte(dup), 0o644), ShouldBeNil)
		So(os.WriteFile(meta, []byte(trackingMetadata), 0o644), ShouldBeNil)

		paths, err := tabular.ExpandGlobs(filepath.Join(dir, "input_w*.csv"))
		So(err, ShouldBeNil)
		So(paths, ShouldResemble, []string{week1, week2})

		ctx := context.Background()
		b := repository.NewBuilder()
		stats, err := tabular.NewLoader(tabular.WithConcurrency(2)).Load(ctx, b, paths, meta)

		Convey("Then rows load in partition order and the first copy wins", func() {
			So(err, ShouldBeNil)
			So(stats.Partitions, ShouldEqual, 2)
			So(stats.FrameRows, ShouldEqual, 5)
			So(stats.MetadataRows, ShouldEqual, 2)
			So(b.Duplicates(), ShouldEqual, int64(1))

			store, rejected, err := b.Freeze(ctx)
			So(err, ShouldBeNil)
			So(rejected, ShouldBeEmpty)
			ep, err := store.Episode(ctx, "2022091200-64")
			So(err, ShouldBeNil)
			wr, _ := ep.Agent("101")
			So(wr.Last().X, ShouldEqual, 10.5)
			cb, _ := ep.Agent("202")
			So(len(cb.Frames), ShouldEqual, 2)
		})
	})

	Convey("Given no matching partitions", t, func() {
		_, err := tabular.ExpandGlobs(filepath.Join(t.TempDir(), "*.csv"))
		So(errors.Is(err, tabular.ErrNoInput), ShouldBeTrue)
	})

	Convey("Given a partition that does not parse", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "w1.csv")
		So(os.WriteFile(path, []byte("nfl_id\n1\n"), 0o644), ShouldBeNil)
		_, err := tabular.NewLoader().LoadPartitions(context.Background(), []string{path})
		So(errors.Is(err, tabular.ErrMissingColumn), ShouldBeTrue)
	})
}

func TestWriter(t *testing.T) {
	Convey("Given an output directory", t, func() {
		dir := filepath.Join(t.TempDir(), "out")
		w, err := tabular.OpenWriter(dir)
		So(err, ShouldBeNil)
		defer w.Close()

		Convey("When a second run opens the same directory", func() {
			_, err := tabular.OpenWriter(dir)

			Convey("Then it is refused", func() {
				So(errors.Is(err, tabular.ErrLocked), ShouldBeTrue)
			})
		})

		Convey("When writing records with unusable metrics", func() {
			rec := model.FeatureRecord{
				EpisodeID:      "e1",
				AgentID:        "a1",
				Frames:         1,
				Tags:           map[string]string{"coverage": "man"},
				RefDistance:    model.Summarize(model.OpDistanceToPoint, []float64{2.5}),
				PathEfficiency: model.Insufficient(model.OpPathGeometry),
				PathCorr:       model.Undefined(model.OpPathGeometry),
			}.WithRole(model.RolePrimary, 1).WithCredit(model.CreditYes)
			path, err := w.WriteRecords([]model.FeatureRecord{rec})
			So(err, ShouldBeNil)

			Convey("Then markers are written instead of zeros", func() {
				head, rows := readTable(path)
				So(len(rows), ShouldEqual, 1)
				So(cell(head, rows[0], "role"), ShouldEqual, "PRIMARY")
				So(cell(head, rows[0], "rank"), ShouldEqual, "1")
				So(cell(head, rows[0], "credited"), ShouldEqual, "yes")
				So(cell(head, rows[0], "tag:coverage"), ShouldEqual, "man")
				So(cell(head, rows[0], "distance_to_point.last"), ShouldEqual, "2.5")
				So(cell(head, rows[0], "path_geometry.efficiency"), ShouldEqual, "insufficient")
				So(cell(head, rows[0], "path_geometry.corr"), ShouldEqual, "undefined")
				So(cell(head, rows[0], "distance_to_nearest_agent.last"), ShouldEqual, "")
			})

			Convey("Then no temp files are left behind", func() {
				entries, err := os.ReadDir(dir)
				So(err, ShouldBeNil)
				for _, e := range entries {
					So(strings.HasPrefix(e.Name(), ".tmp-"), ShouldBeFalse)
				}
			})
		})

		Convey("When writing comparisons", func() {
			c := compare.New()
			res, _ := c.Run(compare.Hypothesis{Name: "broken", Kind: "median"}, nil)
			path, err := w.WriteComparisons([]compare.Result{res})
			So(err, ShouldBeNil)

			Convey("Then failed comparisons keep their status and empty statistics", func() {
				head, rows := readTable(path)
				So(cell(head, rows[0], "hypothesis"), ShouldEqual, "broken")
				So(cell(head, rows[0], "status"), ShouldEqual, string(compare.StatusFailed))
				So(cell(head, rows[0], "p_value"), ShouldEqual, "")
				So(cell(head, rows[0], "hedges_g"), ShouldEqual, "")
			})
		})

		Convey("When writing archetypes and similarities", func() {
			vectors := []archetype.Vector{
				{ID: "w1", Values: []float64{0.75, 0.25}},
				{ID: "w2", Values: []float64{0.5, 0.5}},
				{ID: "w3", Values: []float64{0, 1}},
			}
			res, err := archetype.New(archetype.WithK(2)).Fit(vectors)
			So(err, ShouldBeNil)
			apath, err := w.WriteArchetypes(res, vectors, []string{"GO", "SLANT"})
			So(err, ShouldBeNil)
			spath, err := w.WriteSimilarities(vectors, 1)
			So(err, ShouldBeNil)

			Convey("Then each agent has a cluster, shares and its nearest neighbour", func() {
				head, rows := readTable(apath)
				So(head, ShouldResemble, []string{"agent_id", "archetype", "share:GO", "share:SLANT"})
				So(cell(head, rows[0], "share:GO"), ShouldEqual, "0.75")
				So(cell(head, rows[0], "archetype"), ShouldStartWith, "cluster_")

				_, srows := readTable(spath)
				So(len(srows), ShouldEqual, 3)
				So(srows[0][2], ShouldEqual, "w2")
			})
		})

		Convey("When writing a summary", func() {
			path, err := w.WriteSummary(map[string]any{"episodes": 3, "excluded": map[string]int{"unrankable": 1}})
			So(err, ShouldBeNil)

			Convey("Then it round-trips as YAML", func() {
				data, err := os.ReadFile(path)
				So(err, ShouldBeNil)
				var back map[string]any
				So(yaml.Unmarshal(data, &back), ShouldBeNil)
				So(back["episodes"], ShouldEqual, 3)
			})
		})
	})
}
