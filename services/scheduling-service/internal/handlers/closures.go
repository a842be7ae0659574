package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/slotbook/slotbook/libs/httpx"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/calendar"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/impact"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/outbox"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/storage"
)

// closureStore is the slice of storage.ClosureRepository the handler
// needs. Create takes the handler's transaction so the closure row and
// its outbox event commit or roll back together.
type closureStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Create(ctx context.Context, tx pgx.Tx, c *model.Closure) (string, error)
	Extend(ctx context.Context, businessID, closureID string, newEndDate time.Time) error
	End(ctx context.Context, businessID, closureID string, endDate time.Time) error
}

type eventStore interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

type ClosureHandler struct {
	closures closureStore
	outbox   eventStore
	engine   *impact.Engine
	logger   *slog.Logger
}

func NewClosureHandler(closures closureStore, ob eventStore, engine *impact.Engine, logger *slog.Logger) *ClosureHandler {
	return &ClosureHandler{closures: closures, outbox: ob, engine: engine, logger: logger}
}

type clockRangeBody struct {
	Start string `json:"start"` // 15:04
	End   string `json:"end"`
}

type recurrenceBody struct {
	Freq     string `json:"freq"` // weekly | monthly | yearly
	Interval int    `json:"interval"`
	Until    string `json:"until"` // 2006-01-02, optional
}

type reschedulePolicyBody struct {
	MaxDays       int    `json:"max_days"`
	Bucket        string `json:"bucket"` // any | morning | afternoon | evening
	AllowWeekends bool   `json:"allow_weekends"`
}

type createClosureRequest struct {
	StartDate   string                `json:"start_date"`
	EndDate     string                `json:"end_date"`
	Type        string                `json:"type"`
	Reason      string                `json:"reason"`
	ServiceIDs  []string              `json:"service_ids"`
	DailyWindow *clockRangeBody       `json:"daily_window"`
	Recurrence  *recurrenceBody       `json:"recurrence"`
	Reschedule  *reschedulePolicyBody `json:"auto_reschedule"`
}

type closureResponse struct {
	ClosureID string `json:"closure_id"`
	Status    string `json:"status"`
}

// Create records a closure and queues the closure-created fact. The
// impact scan runs asynchronously off that event, so the closure is
// visible to the calendar before affected appointments move.
func (h *ClosureHandler) Create(w http.ResponseWriter, r *http.Request) {
	bizID, ok := requireBusiness(w, r)
	if !ok {
		return
	}
	var req createClosureRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.buildClosure(bizID, req)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	ctx := r.Context()
	tx, err := h.closures.Begin(ctx)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := h.closures.Create(ctx, tx, &c)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	evt, err := outbox.ClosureEvent(outbox.TopicClosureCreated, id, outbox.ClosureCreatedPayload{
		ClosureID:  id,
		BusinessID: bizID,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		Type:       string(c.Type),
		ServiceIDs: c.ServiceIDs,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if err := h.outbox.Insert(ctx, tx, evt); err != nil {
		respondError(w, h.logger, err)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		respondError(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, closureResponse{ClosureID: id, Status: "active"})
}

func (h *ClosureHandler) buildClosure(bizID string, req createClosureRequest) (model.Closure, error) {
	var c model.Closure
	c.BusinessID = bizID
	c.Reason = strings.TrimSpace(req.Reason)
	c.ServiceIDs = req.ServiceIDs

	ctype, ok := model.ParseClosureType(strings.TrimSpace(req.Type))
	if !ok {
		return c, invalidf("unknown closure type %q", req.Type)
	}
	c.Type = ctype

	var err error
	c.StartDate, err = time.Parse(calendar.DateLayout, req.StartDate)
	if err != nil {
		return c, invalidf("invalid start_date %q", req.StartDate)
	}
	c.EndDate, err = time.Parse(calendar.DateLayout, req.EndDate)
	if err != nil {
		return c, invalidf("invalid end_date %q", req.EndDate)
	}
	if c.EndDate.Before(c.StartDate) {
		return c, invalidf("end_date precedes start_date")
	}

	if req.DailyWindow != nil {
		cr, err := parseClockRange(*req.DailyWindow)
		if err != nil {
			return c, err
		}
		c.DailyWindow = &cr
	}
	if req.Recurrence != nil {
		freq, ok := model.ParseRecurrenceFreq(strings.TrimSpace(req.Recurrence.Freq))
		if !ok {
			return c, invalidf("unknown recurrence freq %q", req.Recurrence.Freq)
		}
		rec := &model.Recurrence{Freq: freq, Interval: req.Recurrence.Interval}
		if req.Recurrence.Until != "" {
			rec.Until, err = time.Parse(calendar.DateLayout, req.Recurrence.Until)
			if err != nil {
				return c, invalidf("invalid recurrence until %q", req.Recurrence.Until)
			}
		}
		c.Recurrence = rec
	}
	if req.Reschedule != nil {
		bucket := model.BucketAny
		if req.Reschedule.Bucket != "" {
			bucket, ok = model.ParseTimeBucket(strings.TrimSpace(req.Reschedule.Bucket))
			if !ok {
				return c, invalidf("unknown time bucket %q", req.Reschedule.Bucket)
			}
		}
		c.AutoReschedulePolicy = &model.ReschedulePolicy{
			MaxDays:       req.Reschedule.MaxDays,
			Bucket:        bucket,
			AllowWeekends: req.Reschedule.AllowWeekends,
		}
	}
	return c, nil
}

type impactRequest struct {
	StartDate  string   `json:"start_date"`
	EndDate    string   `json:"end_date"`
	ServiceIDs []string `json:"service_ids"`
}

type impactResponse struct {
	Affected     int                   `json:"affected"`
	Appointments []appointmentResponse `json:"appointments"`
}

// Impact previews which active appointments a closure over the given
// range would hit. Nothing is modified.
func (h *ClosureHandler) Impact(w http.ResponseWriter, r *http.Request) {
	bizID, ok := requireBusiness(w, r)
	if !ok {
		return
	}
	var req impactRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	appts, err := h.engine.PreviewImpact(r.Context(), impact.ImpactQuery{
		BusinessID: bizID,
		StartDate:  strings.TrimSpace(req.StartDate),
		EndDate:    strings.TrimSpace(req.EndDate),
		ServiceIDs: req.ServiceIDs,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	resp := impactResponse{Affected: len(appts), Appointments: make([]appointmentResponse, 0, len(appts))}
	for _, a := range appts {
		resp.Appointments = append(resp.Appointments, toAppointmentResponse(a))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// Reschedule runs the auto-reschedule search for a closure on demand,
// same path the event consumer takes.
func (h *ClosureHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	bizID, ok := requireBusiness(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if err := storage.EnsureUUID(id); err != nil {
		respondError(w, h.logger, err)
		return
	}
	report, err := h.engine.AutoReschedule(r.Context(), bizID, id)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, report)
}

type extendClosureRequest struct {
	EndDate string `json:"end_date"`
}

func (h *ClosureHandler) Extend(w http.ResponseWriter, r *http.Request) {
	bizID, ok := requireBusiness(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if err := storage.EnsureUUID(id); err != nil {
		respondError(w, h.logger, err)
		return
	}
	var req extendClosureRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	endDate, err := time.Parse(calendar.DateLayout, strings.TrimSpace(req.EndDate))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "invalid end_date")
		return
	}
	if err := h.closures.Extend(r.Context(), bizID, id, endDate); err != nil {
		respondError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, closureResponse{ClosureID: id, Status: "active"})
}

// End terminates a closure early, reopening the calendar from today.
func (h *ClosureHandler) End(w http.ResponseWriter, r *http.Request) {
	bizID, ok := requireBusiness(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if err := storage.EnsureUUID(id); err != nil {
		respondError(w, h.logger, err)
		return
	}
	yesterday := time.Now().AddDate(0, 0, -1)
	if err := h.closures.End(r.Context(), bizID, id, yesterday); err != nil {
		respondError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, closureResponse{ClosureID: id, Status: "ended"})
}
