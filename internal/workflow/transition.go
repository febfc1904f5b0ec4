// Package workflow validates task state changes of interventions.
package workflow

import (
	"fmt"

	"github.com/spec-kit/intervention-service/internal/domain"
	apperrors "github.com/spec-kit/intervention-service/pkg/util/errorutil"
)

// Transition is the verdict for moving from one task state to another.
type Transition struct {
	Allowed       bool
	RequiresStart bool
	RequiresEnd   bool
	Reason        string
}

var allowedTransitions = map[domain.TaskState][]domain.TaskState{
	domain.TaskStatePending:    {domain.TaskStateInProgress, domain.TaskStateCancelled, domain.TaskStateFinished},
	domain.TaskStateInProgress: {domain.TaskStateFinished, domain.TaskStatePending, domain.TaskStateCancelled},
	domain.TaskStateFinished:   {},
	domain.TaskStateCancelled:  {domain.TaskStatePending},
}

// ValidateTransition maps (current, requested) to a verdict.
// A self-transition is always allowed with no extra requirements.
func ValidateTransition(current, requested domain.TaskState) Transition {
	if current == requested {
		return Transition{Allowed: true}
	}
	if !isAllowed(current, requested) {
		return Transition{
			Allowed: false,
			Reason:  fmt.Sprintf("transition from %q to %q is not permitted", current, requested),
		}
	}
	switch requested {
	case domain.TaskStateFinished:
		return Transition{Allowed: true, RequiresStart: true, RequiresEnd: true}
	case domain.TaskStateInProgress:
		return Transition{Allowed: true, RequiresStart: true}
	default:
		return Transition{Allowed: true}
	}
}

func isAllowed(current, next domain.TaskState) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Check validates the transition and that the resulting record satisfies its
// timestamp requirements. hasStart and hasEnd describe the record after the change.
func Check(current, requested domain.TaskState, hasStart, hasEnd bool) error {
	if !requested.Valid() {
		return apperrors.NewValidationError(fmt.Sprintf("unknown task state %q", requested), map[string]any{"field": "estadoTarea"})
	}
	verdict := ValidateTransition(current, requested)
	if !verdict.Allowed {
		return apperrors.NewValidationError(verdict.Reason, map[string]any{
			"field": "estadoTarea",
			"from":  current,
			"to":    requested,
		})
	}
	if verdict.RequiresStart && !hasStart {
		return apperrors.NewValidationError(fmt.Sprintf("state %q requires fechaHoraInicio", requested), map[string]any{"field": "fechaHoraInicio"})
	}
	if verdict.RequiresEnd && !hasEnd {
		return apperrors.NewValidationError(fmt.Sprintf("state %q requires fechaHoraFin", requested), map[string]any{"field": "fechaHoraFin"})
	}
	return nil
}
