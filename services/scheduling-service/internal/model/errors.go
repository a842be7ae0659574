package model

import "errors"

// Core error taxonomy. Callers classify with errors.Is; handlers translate
// each kind into a distinct HTTP status so clients can tell "slot taken"
// from "business closed" from "invalid input".
var (
	ErrNotFound               = errors.New("not found")
	ErrSlotConflict           = errors.New("slot conflict")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrInvalidBusinessState   = errors.New("invalid business state")
	ErrBusinessClosed         = errors.New("business closed")
	ErrInvalidArgument        = errors.New("invalid argument")
)

// ErrorKind returns the stable wire identifier for a core error, or "" for
// errors outside the taxonomy.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrSlotConflict):
		return "slot_conflict"
	case errors.Is(err, ErrInvalidStateTransition):
		return "invalid_state_transition"
	case errors.Is(err, ErrInvalidBusinessState):
		return "invalid_business_state"
	case errors.Is(err, ErrBusinessClosed):
		return "business_closed"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	}
	return ""
}
