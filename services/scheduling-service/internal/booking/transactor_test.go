package booking

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/lifecycle"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
)

func TestBookRequest_HashStableAndSensitive(t *testing.T) {
	req := BookRequest{
		BusinessID: "biz-1",
		ServiceID:  "svc-1",
		CustomerID: "cust-1",
		Date:       "2026-03-02",
		Start:      "10:00",
	}
	if req.hash() != req.hash() {
		t.Fatal("hash must be deterministic")
	}
	moved := req
	moved.Start = "10:30"
	if req.hash() == moved.hash() {
		t.Fatal("different start times must hash differently")
	}
	// Fields that do not affect the booked slot stay out of the hash.
	noted := req
	noted.Notes = "bring photos"
	if req.hash() != noted.hash() {
		t.Fatal("notes must not change the request identity")
	}
}

func TestBook_RequiresServiceAndCustomer(t *testing.T) {
	trans := NewTransactor(nil, nil, nil, nil, lifecycle.Policy{}, slog.New(slog.DiscardHandler))
	_, _, err := trans.Book(context.Background(), BookRequest{BusinessID: "biz-1"})
	if !errors.Is(err, model.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestBatchTransition_Validation(t *testing.T) {
	trans := NewTransactor(nil, nil, nil, nil, lifecycle.Policy{}, slog.New(slog.DiscardHandler))
	in := lifecycle.Input{Target: model.StatusConfirmed}

	_, err := trans.BatchTransition(context.Background(), "biz-1", nil, in)
	if !errors.Is(err, model.ErrInvalidArgument) {
		t.Fatalf("empty batch should be rejected, got %v", err)
	}

	ids := make([]string, MaxBatchSize+1)
	for i := range ids {
		ids[i] = uuid.NewString()
	}
	_, err = trans.BatchTransition(context.Background(), "biz-1", ids, in)
	if !errors.Is(err, model.ErrInvalidArgument) {
		t.Fatalf("oversized batch should be rejected, got %v", err)
	}

	failures, err := trans.BatchTransition(context.Background(), "biz-1", []string{"not-a-uuid"}, in)
	if !errors.Is(err, model.ErrInvalidArgument) {
		t.Fatalf("malformed id should reject the batch, got %v", err)
	}
	if len(failures) != 1 || failures[0].AppointmentID != "not-a-uuid" {
		t.Fatalf("expected the malformed id reported, got %+v", failures)
	}
}
