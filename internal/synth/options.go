package synth

// Option applies a configuration option to the Generator.
type Option func(*Generator)

// WithEpisodes sets the number of generated episodes.
func WithEpisodes(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.episodes = n
		}
	}
}

// WithSeed sets the seed; equal seeds give identical output.
func WithSeed(seed uint64) Option {
	return func(g *Generator) {
		g.seed = seed
	}
}

// WithAgents sets the number of offensive and defensive agents per episode.
func WithAgents(offense, defense int) Option {
	return func(g *Generator) {
		if offense > 0 {
			g.offense = offense
		}
		if defense > 0 {
			g.defense = defense
		}
	}
}

// WithFrames bounds the number of frames per episode.
func WithFrames(lo, hi int) Option {
	return func(g *Generator) {
		if lo > 0 && hi >= lo {
			g.minFrames, g.maxFrames = lo, hi
		}
	}
}

// WithRoster sets how many distinct receivers and defenders the episodes
// draw from. Larger rosters spread observations thinner.
func WithRoster(receivers, defenders int) Option {
	return func(g *Generator) {
		if receivers > 0 {
			g.receivers = receivers
		}
		if defenders > 0 {
			g.defenders = defenders
		}
	}
}

// WithPartitions sets how many frame files WriteCSV produces.
func WithPartitions(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.partitions = n
		}
	}
}

// WithOverlap repeats the last n rows of each partition at the start of the
// next one, as happens when weekly exports overlap.
func WithOverlap(n int) Option {
	return func(g *Generator) {
		if n >= 0 {
			g.overlap = n
		}
	}
}
