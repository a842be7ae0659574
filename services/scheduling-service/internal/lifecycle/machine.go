package lifecycle

import (
	"fmt"
	"time"

	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
)

const (
	MaxCancelReasonLen    = 500
	MaxCompletionNotesLen = 1000
)

// Policy controls the temporal preconditions the state machine enforces.
// The legacy system never checked these, so both default to off; deployments
// that want strict behavior enable them via configuration.
type Policy struct {
	// CompleteAfterEnd requires end_time <= now before CONFIRMED -> COMPLETED.
	CompleteAfterEnd bool
	// NoShowAfterStart requires start_time <= now before CONFIRMED -> NO_SHOW.
	NoShowAfterStart bool
}

var transitions = map[model.Status]map[model.Status]bool{
	model.StatusPending: {
		model.StatusConfirmed: true,
		model.StatusCanceled:  true,
	},
	model.StatusConfirmed: {
		model.StatusCompleted: true,
		model.StatusCanceled:  true,
		model.StatusNoShow:    true,
	},
	// Completed, canceled and no_show are terminal.
}

func CanTransition(from, to model.Status) bool {
	return transitions[from][to]
}

// Input is one requested transition. Reason is required for cancellation;
// Notes are optional internal notes recorded on completion.
type Input struct {
	Target model.Status
	Reason string
	Notes  string
}

// Validate checks a single transition against the machine, the policy and
// the field constraints. It does not mutate anything; the caller applies
// the change inside its transaction after validation passes.
func Validate(appt model.Appointment, in Input, now time.Time, p Policy) error {
	if appt.Status.Terminal() {
		return fmt.Errorf("appointment %s is %s (terminal): %w", appt.ID, appt.Status, model.ErrInvalidStateTransition)
	}
	if !CanTransition(appt.Status, in.Target) {
		return fmt.Errorf("cannot transition %s -> %s: %w", appt.Status, in.Target, model.ErrInvalidStateTransition)
	}

	switch in.Target {
	case model.StatusCanceled:
		if n := len(in.Reason); n < 1 || n > MaxCancelReasonLen {
			return fmt.Errorf("cancellation reason must be 1-%d chars (got %d): %w", MaxCancelReasonLen, n, model.ErrInvalidArgument)
		}
	case model.StatusCompleted:
		if len(in.Notes) > MaxCompletionNotesLen {
			return fmt.Errorf("completion notes exceed %d chars: %w", MaxCompletionNotesLen, model.ErrInvalidArgument)
		}
		if p.CompleteAfterEnd && now.Before(appt.EndTime) {
			return fmt.Errorf("appointment %s has not ended yet: %w", appt.ID, model.ErrInvalidStateTransition)
		}
	case model.StatusNoShow:
		if p.NoShowAfterStart && now.Before(appt.StartTime) {
			return fmt.Errorf("appointment %s has not started yet: %w", appt.ID, model.ErrInvalidStateTransition)
		}
	}
	return nil
}
