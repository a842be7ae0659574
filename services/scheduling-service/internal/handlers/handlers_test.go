package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/slotbook/slotbook/libs/httpx"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/booking"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/lifecycle"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// A transactor with nil dependencies: only request-validation paths that
// reject before touching storage may run against it.
func testMux(t *testing.T) *http.ServeMux {
	t.Helper()
	trans := booking.NewTransactor(nil, nil, nil, nil, lifecycle.Policy{}, testLogger())
	h := NewAppointmentHandler(trans, nil, testLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/appointments", h.Create)
	mux.HandleFunc("POST /api/v1/appointments/{id}/status", h.Transition)
	mux.HandleFunc("POST /api/v1/appointments/batch/status", h.BatchStatus)
	mux.HandleFunc("POST /api/v1/appointments/batch/cancel", h.BatchCancel)
	return mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, businessID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if businessID != "" {
		req.Header.Set(HeaderBusinessID, businessID)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func errorKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body httpx.ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body is not JSON: %v: %s", err, rec.Body.String())
	}
	return body.Kind
}

func TestCreate_RequiresBusinessHeader(t *testing.T) {
	rec := doJSON(t, testMux(t), http.MethodPost, "/api/v1/appointments", "", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if errorKind(t, rec) != "invalid_argument" {
		t.Fatalf("unexpected kind %q", errorKind(t, rec))
	}
}

func TestCreate_RejectsMalformedJSON(t *testing.T) {
	rec := doJSON(t, testMux(t), http.MethodPost, "/api/v1/appointments", "biz-1", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreate_RejectsMissingFields(t *testing.T) {
	rec := doJSON(t, testMux(t), http.MethodPost, "/api/v1/appointments", "biz-1",
		`{"service_id": "svc-1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestTransition_UnknownStatus(t *testing.T) {
	id := uuid.NewString()
	rec := doJSON(t, testMux(t), http.MethodPost, "/api/v1/appointments/"+id+"/status", "biz-1",
		`{"status": "rescheduled"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if errorKind(t, rec) != "invalid_argument" {
		t.Fatalf("unexpected kind %q", errorKind(t, rec))
	}
}

func TestTransition_MalformedID(t *testing.T) {
	rec := doJSON(t, testMux(t), http.MethodPost, "/api/v1/appointments/not-a-uuid/status", "biz-1",
		`{"status": "confirmed"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestBatchStatus_RejectsOversizedBatch(t *testing.T) {
	ids := make([]string, booking.MaxBatchSize+1)
	for i := range ids {
		ids[i] = uuid.NewString()
	}
	raw, _ := json.Marshal(map[string]any{"appointment_ids": ids, "status": "confirmed"})
	rec := doJSON(t, testMux(t), http.MethodPost, "/api/v1/appointments/batch/status", "biz-1", string(raw))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestBatchStatus_ReportsMalformedIDs(t *testing.T) {
	raw := fmt.Sprintf(`{"appointment_ids": [%q, "oops"], "status": "confirmed"}`, uuid.NewString())
	rec := doJSON(t, testMux(t), http.MethodPost, "/api/v1/appointments/batch/status", "biz-1", raw)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var body struct {
		Failed []booking.BatchFailure `json:"failed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if len(body.Failed) != 1 || body.Failed[0].AppointmentID != "oops" {
		t.Fatalf("expected the malformed id reported, got %+v", body.Failed)
	}
}

func TestBatchCancel_EmptyBatch(t *testing.T) {
	rec := doJSON(t, testMux(t), http.MethodPost, "/api/v1/appointments/batch/cancel", "biz-1",
		`{"appointment_ids": [], "reason": "storm"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRespondError_Mapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{model.ErrNotFound, http.StatusNotFound, "not_found"},
		{model.ErrSlotConflict, http.StatusConflict, "slot_conflict"},
		{model.ErrInvalidStateTransition, http.StatusUnprocessableEntity, "invalid_state_transition"},
		{model.ErrInvalidBusinessState, http.StatusUnprocessableEntity, "invalid_business_state"},
		{model.ErrBusinessClosed, http.StatusUnprocessableEntity, "business_closed"},
		{model.ErrInvalidArgument, http.StatusBadRequest, "invalid_argument"},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		respondError(rec, testLogger(), fmt.Errorf("wrapped: %w", c.err))
		if rec.Code != c.status {
			t.Fatalf("%v: expected %d, got %d", c.err, c.status, rec.Code)
		}
		if errorKind(t, rec) != c.kind {
			t.Fatalf("%v: expected kind %q, got %q", c.err, c.kind, errorKind(t, rec))
		}
	}
}
