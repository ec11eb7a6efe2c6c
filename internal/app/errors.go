package service

import (
	"errors"
	"fmt"

	"github.com/okian/trajan/internal/domain/model"
	"github.com/okian/trajan/internal/domain/roles"
)

// Sentinel error kinds for this package.
var (
	ErrNoEpisodes = errors.New("store holds no episodes")
	ErrNotRun     = errors.New("pipeline has not run")
	ErrRunning    = errors.New("pipeline already running")
)

func wrapUnrankable(feature string, m model.Metric) error {
	status := string(m.Status)
	if status == "" {
		status = "untagged"
	}
	return fmt.Errorf("%w: %s is %s", roles.ErrUnrankable, feature, status)
}
