// Package synth generates deterministic synthetic episodes: one targeted
// receiver running toward a landing point, other receivers on shorter
// routes, and defenders converging on the landing point. Outcomes are more
// likely incomplete when a defender finishes close to the landing point.
package synth

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/google/uuid"

	"github.com/okian/trajan/internal/adapters/repository"
	"github.com/okian/trajan/internal/domain/geometry"
	"github.com/okian/trajan/internal/domain/model"
)

// Default generator configuration constants.
const (
	defaultEpisodes   = 64
	defaultSeed       = 7
	defaultOffense    = 3
	defaultDefense    = 4
	defaultMinFrames  = 12
	defaultMaxFrames  = 34
	defaultReceivers  = 8
	defaultDefenders  = 10
	defaultPartitions = 2

	frameInterval = 0.1
	fieldLength   = 120.0
	fieldWidth    = 53.3
	playsPerGame  = 16
	firstGameID   = 2024090500
	pcgStream     = 0x5851f42d4c957f2d
)

// Outcome codes written to the metadata table.
const (
	OutcomeComplete     = "C"
	OutcomeIncomplete   = "I"
	OutcomeInterception = "IN"
)

// Routes and coverages written as episode tags.
var (
	Routes    = []string{"GO", "SLANT", "OUT", "IN", "HITCH", "POST", "CROSS"}
	Coverages = []string{"COVER_1_MAN", "COVER_2_ZONE", "COVER_3_ZONE", "QUARTERS"}

	offenseCategories = []string{"WR", "WR", "TE", "RB"}
	defenseCategories = []string{"CB", "CB", "SS", "FS", "LB"}
)

// Tag names carried by generated episodes.
const (
	TagRoute    = "route_of_targeted_receiver"
	TagCoverage = "team_coverage_type"
)

// Generator produces synthetic episodes.
type Generator struct {
	episodes   int
	seed       uint64
	offense    int
	defense    int
	minFrames  int
	maxFrames  int
	receivers  int
	defenders  int
	partitions int
	overlap    int
}

// New creates a Generator with configuration options.
func New(opts ...Option) *Generator {
	g := &Generator{
		episodes:   defaultEpisodes,
		seed:       defaultSeed,
		offense:    defaultOffense,
		defense:    defaultDefense,
		minFrames:  defaultMinFrames,
		maxFrames:  defaultMaxFrames,
		receivers:  defaultReceivers,
		defenders:  defaultDefenders,
		partitions: defaultPartitions,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.receivers = max(g.receivers, g.offense)
	g.defenders = max(g.defenders, g.defense)
	return g
}

// roster is the pool of agents episodes draw from.
type roster struct {
	receivers   []string
	defenders   []string
	preferences [][]float64 // route weights per receiver
}

func (g *Generator) roster(rng *rand.Rand) roster {
	ns := uuid.NewSHA1(uuid.NameSpaceOID, fmt.Appendf(nil, "trajan-synth-%d", g.seed))
	r := roster{}
	for i := range g.receivers {
		r.receivers = append(r.receivers, uuid.NewSHA1(ns, fmt.Appendf(nil, "off-%d", i)).String())
		w := make([]float64, len(Routes))
		for j := range w {
			w[j] = rng.Float64() * rng.Float64()
		}
		// every receiver has a favourite route
		w[rng.IntN(len(Routes))] += 1.5
		r.preferences = append(r.preferences, w)
	}
	for i := range g.defenders {
		r.defenders = append(r.defenders, uuid.NewSHA1(ns, fmt.Appendf(nil, "def-%d", i)).String())
	}
	return r
}

// Episodes returns the generated episodes. Ids increase with the index,
// so the slice is in id order.
func (g *Generator) Episodes() []model.Episode {
	rng := rand.New(rand.NewPCG(g.seed, g.seed^pcgStream))
	r := g.roster(rng)
	out := make([]model.Episode, 0, g.episodes)
	for i := range g.episodes {
		out = append(out, g.episode(rng, r, i))
	}
	return out
}

// EpisodeID returns the id of episode i, as game and play joined by "-".
func EpisodeID(i int) string {
	game, play := gameAndPlay(i)
	return fmt.Sprintf("%d-%d", game, play)
}

func gameAndPlay(i int) (int, int) {
	return firstGameID + i/playsPerGame, 100 + i%playsPerGame
}

func (g *Generator) episode(rng *rand.Rand, r roster, i int) model.Episode {
	frames := g.minFrames + rng.IntN(g.maxFrames-g.minFrames+1)
	losX := 20 + rng.Float64()*70
	offense := pick(rng, r.receivers, g.offense)
	defense := pick(rng, r.defenders, g.defense)

	// the first offensive agent is targeted and runs the longest route
	targetIdx := slices.Index(r.receivers, offense[0])
	route := weighted(rng, r.preferences[targetIdx])
	start := model.Point{X: losX, Y: 8 + rng.Float64()*(fieldWidth-16)}
	depth := 14 + rng.Float64()*12
	end := routeEnd(start, route, depth, rng)
	landing := model.Point{X: end.X + rng.NormFloat64()*0.7, Y: end.Y + rng.NormFloat64()*0.7}

	ep := model.Episode{
		ID:        EpisodeID(i),
		Reference: landing,
		Tags: map[string]string{
			TagRoute:    Routes[route],
			TagCoverage: Coverages[rng.IntN(len(Coverages))],
		},
	}

	ep.Agents = append(ep.Agents, g.agent(rng, offense[0], offenseCategories[0], "offense", start, end, frames))
	for k, id := range offense[1:] {
		s := model.Point{X: losX, Y: 5 + rng.Float64()*(fieldWidth-10)}
		e := model.Point{X: s.X + 3 + rng.Float64()*7, Y: s.Y + rng.NormFloat64()*3}
		ep.Agents = append(ep.Agents, g.agent(rng, id, offenseCategories[(k+1)%len(offenseCategories)], "offense", s, e, frames))
	}

	closest := math.Inf(1)
	for k, id := range defense {
		s := model.Point{X: losX + 5 + rng.Float64()*12, Y: 5 + rng.Float64()*(fieldWidth-10)}
		radius := 0.5 + rng.Float64()*9
		angle := rng.Float64() * 2 * math.Pi
		e := model.Point{X: landing.X + radius*math.Cos(angle), Y: landing.Y + radius*math.Sin(angle)}
		closest = min(closest, radius)
		ep.Agents = append(ep.Agents, g.agent(rng, id, defenseCategories[k%len(defenseCategories)], "defense", s, e, frames))
	}

	pComplete := math.Max(0.05, math.Min(0.9, 0.15+0.12*closest))
	switch u := rng.Float64(); {
	case u < pComplete:
		ep.Outcome = OutcomeComplete
	case u < pComplete+0.08:
		ep.Outcome = OutcomeInterception
	default:
		ep.Outcome = OutcomeIncomplete
	}
	return ep
}

// agent moves from start to end along a slightly noisy straight line.
func (g *Generator) agent(rng *rand.Rand, id, category, side string, start, end model.Point, frames int) model.Agent {
	a := model.Agent{ID: id, Category: category, Side: side, Frames: make([]model.Frame, frames)}
	prev := start
	prevSpeed := 0.0
	for f := range frames {
		t := float64(f) / float64(max(frames-1, 1))
		p := model.Point{
			X: clamp(start.X+(end.X-start.X)*t+rng.NormFloat64()*0.05, 0, fieldLength),
			Y: clamp(start.Y+(end.Y-start.Y)*t+rng.NormFloat64()*0.05, 0, fieldWidth),
		}
		heading := math.Atan2(end.Y-start.Y, end.X-start.X)
		speed := 0.0
		if f > 0 {
			heading = math.Atan2(p.Y-prev.Y, p.X-prev.X)
			speed = math.Hypot(p.X-prev.X, p.Y-prev.Y) / frameInterval
		}
		a.Frames[f] = model.Frame{
			Index:        f + 1,
			X:            p.X,
			Y:            p.Y,
			Speed:        speed,
			Acceleration: (speed - prevSpeed) / frameInterval,
			Heading:      heading,
			Orientation:  geometry.NormalizeAngle(heading + rng.NormFloat64()*0.3),
		}
		prev, prevSpeed = p, speed
	}
	return a
}

func routeEnd(start model.Point, route int, depth float64, rng *rand.Rand) model.Point {
	side := 1.0
	if start.Y > fieldWidth/2 {
		side = -1
	}
	var dx, dy float64
	switch Routes[route] {
	case "GO":
		dx, dy = depth+6, rng.NormFloat64()
	case "SLANT":
		dx, dy = depth*0.6, side*depth*0.6
	case "OUT":
		dx, dy = depth*0.7, -side*depth*0.4
	case "IN":
		dx, dy = depth*0.7, side*depth*0.5
	case "HITCH":
		dx, dy = depth*0.5, rng.NormFloat64()
	case "POST":
		dx, dy = depth, side*depth*0.5
	default:
		dx, dy = depth*0.4, side*depth
	}
	return model.Point{
		X: clamp(start.X+dx, 0, fieldLength),
		Y: clamp(start.Y+dy, 0, fieldWidth),
	}
}

// pick draws n distinct ids from pool.
func pick(rng *rand.Rand, pool []string, n int) []string {
	idx := rng.Perm(len(pool))[:n]
	out := make([]string, n)
	for i, j := range idx {
		out[i] = pool[j]
	}
	return out
}

func weighted(rng *rand.Rand, w []float64) int {
	total := 0.0
	for _, x := range w {
		total += x
	}
	u := rng.Float64() * total
	for i, x := range w {
		if u < x {
			return i
		}
		u -= x
	}
	return len(w) - 1
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Rows flattens episodes into the rows a store builder consumes.
func Rows(episodes []model.Episode) ([]repository.FrameRow, []repository.Metadata) {
	var frames []repository.FrameRow
	metas := make([]repository.Metadata, 0, len(episodes))
	for _, ep := range episodes {
		for _, a := range ep.Agents {
			for _, f := range a.Frames {
				frames = append(frames, repository.FrameRow{
					EpisodeID: ep.ID, AgentID: a.ID, Category: a.Category, Side: a.Side, Frame: f,
				})
			}
		}
		metas = append(metas, repository.Metadata{
			EpisodeID: ep.ID, Reference: ep.Reference, Outcome: ep.Outcome, Tags: ep.Tags,
		})
	}
	return frames, metas
}
