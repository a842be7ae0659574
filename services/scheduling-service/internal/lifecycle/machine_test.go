package lifecycle

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
)

func TestCanTransition_Matrix(t *testing.T) {
	allowed := [][2]model.Status{
		{model.StatusPending, model.StatusConfirmed},
		{model.StatusPending, model.StatusCanceled},
		{model.StatusConfirmed, model.StatusCompleted},
		{model.StatusConfirmed, model.StatusCanceled},
		{model.StatusConfirmed, model.StatusNoShow},
	}
	for _, pair := range allowed {
		if !CanTransition(pair[0], pair[1]) {
			t.Fatalf("%s -> %s should be allowed", pair[0], pair[1])
		}
	}
	denied := [][2]model.Status{
		{model.StatusPending, model.StatusCompleted},
		{model.StatusPending, model.StatusNoShow},
		{model.StatusConfirmed, model.StatusPending},
		{model.StatusCompleted, model.StatusCanceled},
		{model.StatusCanceled, model.StatusConfirmed},
		{model.StatusNoShow, model.StatusCompleted},
	}
	for _, pair := range denied {
		if CanTransition(pair[0], pair[1]) {
			t.Fatalf("%s -> %s should be denied", pair[0], pair[1])
		}
	}
}

func TestValidate_TerminalState(t *testing.T) {
	appt := model.Appointment{ID: "a1", Status: model.StatusCompleted}
	err := Validate(appt, Input{Target: model.StatusCanceled, Reason: "x"}, time.Now(), Policy{})
	if !errors.Is(err, model.ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
}

func TestValidate_CancelReasonBounds(t *testing.T) {
	appt := model.Appointment{ID: "a1", Status: model.StatusConfirmed}

	err := Validate(appt, Input{Target: model.StatusCanceled}, time.Now(), Policy{})
	if !errors.Is(err, model.ErrInvalidArgument) {
		t.Fatalf("empty reason should be rejected, got %v", err)
	}

	long := strings.Repeat("x", MaxCancelReasonLen+1)
	err = Validate(appt, Input{Target: model.StatusCanceled, Reason: long}, time.Now(), Policy{})
	if !errors.Is(err, model.ErrInvalidArgument) {
		t.Fatalf("oversized reason should be rejected, got %v", err)
	}

	if err := Validate(appt, Input{Target: model.StatusCanceled, Reason: "client request"}, time.Now(), Policy{}); err != nil {
		t.Fatalf("valid cancellation rejected: %v", err)
	}
}

func TestValidate_CompletionNotesBound(t *testing.T) {
	appt := model.Appointment{ID: "a1", Status: model.StatusConfirmed}
	long := strings.Repeat("x", MaxCompletionNotesLen+1)
	err := Validate(appt, Input{Target: model.StatusCompleted, Notes: long}, time.Now(), Policy{})
	if !errors.Is(err, model.ErrInvalidArgument) {
		t.Fatalf("oversized notes should be rejected, got %v", err)
	}
}

func TestValidate_TemporalPolicy(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	appt := model.Appointment{
		ID:        "a1",
		Status:    model.StatusConfirmed,
		StartTime: now.Add(1 * time.Hour),
		EndTime:   now.Add(2 * time.Hour),
	}

	// Policy off: completing a future appointment is tolerated.
	if err := Validate(appt, Input{Target: model.StatusCompleted}, now, Policy{}); err != nil {
		t.Fatalf("lenient policy should allow early completion: %v", err)
	}

	strict := Policy{CompleteAfterEnd: true, NoShowAfterStart: true}
	err := Validate(appt, Input{Target: model.StatusCompleted}, now, strict)
	if !errors.Is(err, model.ErrInvalidStateTransition) {
		t.Fatalf("strict policy should reject early completion, got %v", err)
	}
	err = Validate(appt, Input{Target: model.StatusNoShow}, now, strict)
	if !errors.Is(err, model.ErrInvalidStateTransition) {
		t.Fatalf("strict policy should reject early no-show, got %v", err)
	}

	// Once past, both pass under the strict policy.
	past := now.Add(3 * time.Hour)
	if err := Validate(appt, Input{Target: model.StatusCompleted}, past, strict); err != nil {
		t.Fatalf("completion after end rejected: %v", err)
	}
	if err := Validate(appt, Input{Target: model.StatusNoShow}, past, strict); err != nil {
		t.Fatalf("no-show after start rejected: %v", err)
	}
}
