package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/slotbook/slotbook/libs/httpx"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/booking"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/lifecycle"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/storage"
)

type AppointmentHandler struct {
	trans  *booking.Transactor
	appts  *storage.AppointmentRepository
	logger *slog.Logger
}

func NewAppointmentHandler(trans *booking.Transactor, appts *storage.AppointmentRepository, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{trans: trans, appts: appts, logger: logger}
}

type appointmentResponse struct {
	AppointmentID   string `json:"appointment_id"`
	BusinessID      string `json:"business_id"`
	ServiceID       string `json:"service_id"`
	StaffID         string `json:"staff_id,omitempty"`
	CustomerID      string `json:"customer_id"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	Status          string `json:"status"`
	PriceCents      int64  `json:"price_cents"`
	Currency        string `json:"currency"`
	Notes           string `json:"notes,omitempty"`
	CancelReason    string `json:"cancel_reason,omitempty"`
	CompletionNotes string `json:"completion_notes,omitempty"`
}

func toAppointmentResponse(a model.Appointment) appointmentResponse {
	return appointmentResponse{
		AppointmentID:   a.ID,
		BusinessID:      a.BusinessID,
		ServiceID:       a.ServiceID,
		StaffID:         a.StaffID,
		CustomerID:      a.CustomerID,
		StartTime:       a.StartTime.Format(time.RFC3339),
		EndTime:         a.EndTime.Format(time.RFC3339),
		Status:          string(a.Status),
		PriceCents:      a.PriceCents,
		Currency:        a.Currency,
		Notes:           a.Notes,
		CancelReason:    a.CancelReason,
		CompletionNotes: a.CompletionNotes,
	}
}

type createAppointmentRequest struct {
	ServiceID  string `json:"service_id"`
	StaffID    string `json:"staff_id"`
	CustomerID string `json:"customer_id"`
	Date       string `json:"date"`
	Start      string `json:"start"`
	Notes      string `json:"notes"`
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	bizID, ok := requireBusiness(w, r)
	if !ok {
		return
	}
	var req createAppointmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.StaffID = strings.TrimSpace(req.StaffID)
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	if req.CustomerID == "" {
		req.CustomerID = userID(r)
	}
	if req.ServiceID == "" || req.CustomerID == "" || req.Date == "" || req.Start == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "service_id, customer_id, date and start are required")
		return
	}

	appt, created, err := h.trans.Book(r.Context(), booking.BookRequest{
		BusinessID:     bizID,
		ServiceID:      req.ServiceID,
		StaffID:        req.StaffID,
		CustomerID:     req.CustomerID,
		Date:           req.Date,
		Start:          req.Start,
		Notes:          req.Notes,
		IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	httpx.WriteJSON(w, status, toAppointmentResponse(appt))
}

func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	bizID, ok := requireBusiness(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if err := storage.EnsureUUID(id); err != nil {
		respondError(w, h.logger, err)
		return
	}
	appt, err := h.appts.GetByID(r.Context(), bizID, id)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

type updateAppointmentRequest struct {
	Date       string  `json:"date"`
	Start      string  `json:"start"`
	StaffID    *string `json:"staff_id"`
	Notes      *string `json:"notes"`
	PriceCents *int64  `json:"price_cents"`
}

func (h *AppointmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	bizID, ok := requireBusiness(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if err := storage.EnsureUUID(id); err != nil {
		respondError(w, h.logger, err)
		return
	}
	var req updateAppointmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	appt, err := h.trans.Update(r.Context(), bizID, id, booking.UpdateRequest{
		Date:       strings.TrimSpace(req.Date),
		Start:      strings.TrimSpace(req.Start),
		StaffID:    req.StaffID,
		Notes:      req.Notes,
		PriceCents: req.PriceCents,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

type transitionRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
	Notes  string `json:"notes"`
}

func (h *AppointmentHandler) Transition(w http.ResponseWriter, r *http.Request) {
	bizID, ok := requireBusiness(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if err := storage.EnsureUUID(id); err != nil {
		respondError(w, h.logger, err)
		return
	}
	var req transitionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	target, ok2 := model.ParseStatus(strings.TrimSpace(req.Status))
	if !ok2 {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "unknown status "+req.Status)
		return
	}
	appt, err := h.trans.Transition(r.Context(), bizID, id, lifecycle.Input{
		Target: target,
		Reason: strings.TrimSpace(req.Reason),
		Notes:  strings.TrimSpace(req.Notes),
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

type batchStatusRequest struct {
	AppointmentIDs []string `json:"appointment_ids"`
	Status         string   `json:"status"`
	Reason         string   `json:"reason"`
	Notes          string   `json:"notes"`
}

type batchResponse struct {
	Updated int                    `json:"updated"`
	Failed  []booking.BatchFailure `json:"failed,omitempty"`
}

func (h *AppointmentHandler) BatchStatus(w http.ResponseWriter, r *http.Request) {
	bizID, ok := requireBusiness(w, r)
	if !ok {
		return
	}
	var req batchStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	target, ok2 := model.ParseStatus(strings.TrimSpace(req.Status))
	if !ok2 {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "unknown status "+req.Status)
		return
	}
	h.runBatch(w, r, bizID, req.AppointmentIDs, lifecycle.Input{
		Target: target,
		Reason: strings.TrimSpace(req.Reason),
		Notes:  strings.TrimSpace(req.Notes),
	})
}

type batchCancelRequest struct {
	AppointmentIDs []string `json:"appointment_ids"`
	Reason         string   `json:"reason"`
}

func (h *AppointmentHandler) BatchCancel(w http.ResponseWriter, r *http.Request) {
	bizID, ok := requireBusiness(w, r)
	if !ok {
		return
	}
	var req batchCancelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.runBatch(w, r, bizID, req.AppointmentIDs, lifecycle.Input{
		Target: model.StatusCanceled,
		Reason: strings.TrimSpace(req.Reason),
	})
}

func (h *AppointmentHandler) runBatch(w http.ResponseWriter, r *http.Request, bizID string, ids []string, in lifecycle.Input) {
	failures, err := h.trans.BatchTransition(r.Context(), bizID, ids, in)
	if err != nil {
		if len(failures) > 0 {
			httpx.WriteJSON(w, http.StatusUnprocessableEntity, batchResponse{Failed: failures})
			return
		}
		respondError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, batchResponse{Updated: len(ids)})
}
