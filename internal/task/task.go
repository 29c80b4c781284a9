// Package task turns parsed calendar directives into domain tasks.
package task

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/beekhof/exchange-sync/internal/domain"
)

// ProjectKey is the directive that names the task's project.
const ProjectKey = "project"

// Source is the event data a task is built from.
type Source struct {
	ID         string
	Subject    string
	Start      time.Time
	ModifiedAt time.Time
	Directives map[string]string
}

// Materialize validates the directives and builds the task.
func Materialize(src Source) (domain.Task, error) {
	project, ok := src.Directives[ProjectKey]
	if !ok {
		return domain.Task{}, &domain.DirectiveError{Err: domain.ErrMissingProjectCode}
	}

	startAt, err := EpochSeconds(src.Start)
	if err != nil {
		return domain.Task{}, err
	}
	modifiedAt, err := EpochSeconds(src.ModifiedAt)
	if err != nil {
		return domain.Task{}, err
	}

	// Map keys are sorted by encoding/json, so the output is deterministic.
	options, err := json.Marshal(src.Directives)
	if err != nil {
		return domain.Task{}, fmt.Errorf("failed to serialize task options: %w", err)
	}

	return domain.Task{
		Name:               src.Subject,
		Kind:               domain.TaskKindNotify,
		ProjectCode:        project,
		ExternalID:         src.ID,
		ExternalModifiedAt: modifiedAt,
		StartAt:            startAt,
		Options:            string(options),
	}, nil
}

// EpochSeconds truncates t to whole seconds since the Unix epoch. Instants
// that do not fit in 32 unsigned bits are rejected rather than wrapped.
func EpochSeconds(t time.Time) (uint32, error) {
	secs := t.Unix()
	if secs < 0 || secs > math.MaxUint32 {
		return 0, &domain.TimeError{Value: t.UTC().Format(time.RFC3339), Err: domain.ErrTimestampOutOfRange}
	}
	return uint32(secs), nil
}
