package roles

import (
	"fmt"
	"slices"
	"strings"

	"github.com/okian/trajan/internal/domain/model"
)

// TargetFeature is the column the target heuristic ranks by.
const TargetFeature = "path_geometry.displacement"

// DefaultTargetCategories are the categories eligible as the episode target.
var DefaultTargetCategories = []string{"WR", "TE", "RB", "FB"}

// IdentifyTarget infers the targeted agent of an episode group as the
// eligible record with the largest displacement. Only records with at least
// two frames on the given side are eligible. The result is an inference:
// episodes where no record qualifies have no target.
func IdentifyTarget(group []model.FeatureRecord, side string, categories []string) (model.FeatureRecord, error) {
	if len(group) == 0 {
		return model.FeatureRecord{}, ErrEmptyGroup
	}
	var eligible []model.FeatureRecord
	for _, rec := range group {
		if rec.Frames < 2 {
			continue
		}
		if side != "" && !strings.EqualFold(rec.Side, side) {
			continue
		}
		if len(categories) > 0 && !slices.Contains(categories, rec.Category) {
			continue
		}
		eligible = append(eligible, rec)
	}
	eligible, _ = Rankable(eligible, TargetFeature)
	if len(eligible) == 0 {
		return model.FeatureRecord{}, fmt.Errorf("%w: no eligible target in episode %s", ErrEmptyGroup, group[0].EpisodeID)
	}
	ranked, err := Classify(eligible, TargetFeature, WithDirection(Descending))
	if err != nil {
		return model.FeatureRecord{}, err
	}
	return ranked[0].Record.WithRole(model.RoleNone, 0), nil
}
