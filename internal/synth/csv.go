package synth

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/okian/trajan/internal/domain/model"
)

// Column layouts of the written tables. They use tracking-data names so
// the default ingest schema reads them back.
var (
	FrameHeader    = []string{"game_id", "play_id", "nfl_id", "frame_id", "player_position", "player_side", "x", "y", "s", "a", "dir", "o"}
	MetadataHeader = []string{"game_id", "play_id", "ball_land_x", "ball_land_y", "pass_result", TagRoute, TagCoverage}
)

// MetadataFile is the name of the written metadata table.
const MetadataFile = "supplementary.csv"

// WriteCSV generates the episodes and writes them as frame partitions plus
// one metadata table under dir. Angles are written as compass degrees.
func (g *Generator) WriteCSV(dir string) (framePaths []string, metadataPath string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", fmt.Errorf("create %s: %w", dir, err)
	}
	episodes := g.Episodes()

	parts := g.partitions
	if parts > len(episodes) {
		parts = max(len(episodes), 1)
	}
	per := (len(episodes) + parts - 1) / parts
	var carry [][]string
	for p := range parts {
		lo, hi := p*per, min((p+1)*per, len(episodes))
		rows := slices.Concat(carry, frameRecords(episodes[lo:hi]))
		path := filepath.Join(dir, fmt.Sprintf("input_w%02d.csv", p+1))
		if err := writeTable(path, FrameHeader, rows); err != nil {
			return nil, "", err
		}
		framePaths = append(framePaths, path)

		own := rows[len(carry):]
		carry = nil
		if g.overlap > 0 && len(own) > 0 {
			carry = own[max(len(own)-g.overlap, 0):]
		}
	}

	metadataPath = filepath.Join(dir, MetadataFile)
	var metas [][]string
	for _, ep := range episodes {
		game, play, _ := strings.Cut(ep.ID, "-")
		metas = append(metas, []string{
			game, play, num(ep.Reference.X), num(ep.Reference.Y), string(ep.Outcome),
			ep.Tags[TagRoute], ep.Tags[TagCoverage],
		})
	}
	if err := writeTable(metadataPath, MetadataHeader, metas); err != nil {
		return nil, "", err
	}
	return framePaths, metadataPath, nil
}

func frameRecords(episodes []model.Episode) [][]string {
	var out [][]string
	for _, ep := range episodes {
		game, play, _ := strings.Cut(ep.ID, "-")
		for _, a := range ep.Agents {
			for _, f := range a.Frames {
				out = append(out, []string{
					game, play, a.ID, strconv.Itoa(f.Index), a.Category, a.Side,
					num(f.X), num(f.Y), num(f.Speed), num(f.Acceleration),
					num(Compass(f.Heading)), num(Compass(f.Orientation)),
				})
			}
		}
	}
	return out
}

// Compass converts a math angle in radians to a compass bearing in degrees
// in [0, 360).
func Compass(rad float64) float64 {
	deg := math.Mod(90-rad*180/math.Pi, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeTable(path string, head []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(head); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
