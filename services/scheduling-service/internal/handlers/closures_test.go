package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/outbox"
)

// fakeTx records commit/rollback; embedding pgx.Tx panics on anything
// the handler is not supposed to touch.
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(ctx context.Context) error   { t.committed = true; return nil }
func (t *fakeTx) Rollback(ctx context.Context) error { t.rolledBack = true; return nil }

type fakeClosureStore struct {
	tx        *fakeTx
	created   *model.Closure
	createErr error
}

func (s *fakeClosureStore) Begin(ctx context.Context) (pgx.Tx, error) { return s.tx, nil }

func (s *fakeClosureStore) Create(ctx context.Context, tx pgx.Tx, c *model.Closure) (string, error) {
	if s.createErr != nil {
		return "", s.createErr
	}
	s.created = c
	return "b4b85f66-7306-4a4c-8f56-16bc51cc8eb0", nil
}

func (s *fakeClosureStore) Extend(ctx context.Context, businessID, closureID string, newEndDate time.Time) error {
	return nil
}

func (s *fakeClosureStore) End(ctx context.Context, businessID, closureID string, endDate time.Time) error {
	return nil
}

type fakeEventStore struct {
	insertErr error
	events    []outbox.Event
}

func (s *fakeEventStore) Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.events = append(s.events, evt)
	return nil
}

func closureMux(t *testing.T, store *fakeClosureStore, events *fakeEventStore) *http.ServeMux {
	t.Helper()
	h := NewClosureHandler(store, events, nil, testLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/closures", h.Create)
	return mux
}

const validClosureBody = `{"start_date":"2026-09-07","end_date":"2026-09-09","type":"vacation","reason":"renovation"}`

func TestClosureCreate_CommitsRowAndEventTogether(t *testing.T) {
	store := &fakeClosureStore{tx: &fakeTx{}}
	events := &fakeEventStore{}
	rec := doJSON(t, closureMux(t, store, events), http.MethodPost, "/api/v1/closures", "biz-1", validClosureBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !store.tx.committed {
		t.Fatalf("transaction was not committed")
	}
	if len(events.events) != 1 || events.events[0].EventType != outbox.TopicClosureCreated {
		t.Fatalf("expected one closure.created event, got %+v", events.events)
	}
}

func TestClosureCreate_EventInsertFailureRollsBackClosure(t *testing.T) {
	store := &fakeClosureStore{tx: &fakeTx{}}
	events := &fakeEventStore{insertErr: errors.New("outbox unavailable")}
	rec := doJSON(t, closureMux(t, store, events), http.MethodPost, "/api/v1/closures", "biz-1", validClosureBody)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.tx.committed {
		t.Fatalf("transaction must not commit when the event insert fails")
	}
	if !store.tx.rolledBack {
		t.Fatalf("transaction was not rolled back")
	}
}

func TestClosureCreate_StoreFailureNeverEmitsEvent(t *testing.T) {
	store := &fakeClosureStore{tx: &fakeTx{}, createErr: errors.New("insert failed")}
	events := &fakeEventStore{}
	rec := doJSON(t, closureMux(t, store, events), http.MethodPost, "/api/v1/closures", "biz-1", validClosureBody)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if len(events.events) != 0 {
		t.Fatalf("no event may be emitted when the closure insert fails")
	}
	if store.tx.committed {
		t.Fatalf("transaction must not commit when the closure insert fails")
	}
}
