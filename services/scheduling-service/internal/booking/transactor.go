package booking

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/availability"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/calendar"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/lifecycle"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/outbox"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/storage"
)

const (
	ClockLayout  = "15:04"
	MaxBatchSize = 50
)

// Transactor owns every write to the appointments table. All paths share
// the same shape: open a transaction, validate against the live calendar,
// write the row, queue the outbox fact, commit. The table's exclusion
// constraint backstops the in-transaction checks, so two racing bookings
// can both pass validation and still only one commits.
type Transactor struct {
	appts    *storage.AppointmentRepository
	cal      *storage.CalendarRepository
	resolver *calendar.Resolver
	outbox   *outbox.Repository
	policy   lifecycle.Policy
	logger   *slog.Logger
	now      func() time.Time
}

func NewTransactor(appts *storage.AppointmentRepository, cal *storage.CalendarRepository, resolver *calendar.Resolver, ob *outbox.Repository, policy lifecycle.Policy, logger *slog.Logger) *Transactor {
	return &Transactor{
		appts:    appts,
		cal:      cal,
		resolver: resolver,
		outbox:   ob,
		policy:   policy,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock fixes the transactor's notion of now. Tests only.
func (t *Transactor) WithClock(now func() time.Time) *Transactor {
	t.now = now
	return t
}

type SlotQuery struct {
	BusinessID string
	ServiceID  string
	StaffID    string
	Date       string
}

// ListSlots enumerates the bookable start times for a service on a date.
// The result is advisory: Book re-validates at commit time.
func (t *Transactor) ListSlots(ctx context.Context, q SlotQuery) ([]time.Time, calendar.Day, error) {
	scope := model.Scope{BusinessID: q.BusinessID, StaffID: q.StaffID}
	svc, err := t.cal.GetService(ctx, q.BusinessID, q.ServiceID)
	if err != nil {
		return nil, calendar.Day{}, err
	}
	day, err := t.resolver.OpenWindows(ctx, q.Date, q.ServiceID, scope)
	if err != nil {
		return nil, calendar.Day{}, err
	}

	tx, err := t.appts.Begin(ctx)
	if err != nil {
		return nil, calendar.Day{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	buffer := time.Duration(svc.BufferMinutes) * time.Minute
	dayEnd := day.Date.AddDate(0, 0, 1)
	existing, err := t.appts.ListActiveOverlapping(ctx, tx, scope, day.Date.Add(-buffer), dayEnd.Add(buffer), "")
	if err != nil {
		return nil, calendar.Day{}, err
	}
	busy := make([]availability.Interval, 0, len(existing))
	for _, e := range existing {
		busy = append(busy, availability.Interval{Start: e.StartTime.Add(-buffer), End: e.EndTime.Add(buffer)})
	}

	step := time.Duration(day.Business.GranularityMinutes) * time.Minute
	if step <= 0 {
		step = 15 * time.Minute
	}
	duration := time.Duration(svc.DurationMinutes) * time.Minute
	return availability.Slots(day.Windows, duration, step, busy, t.now()), day, nil
}

type BookRequest struct {
	BusinessID     string
	ServiceID      string
	StaffID        string // empty means business-wide
	CustomerID     string
	Date           string // business-local, 2006-01-02
	Start          string // business-local clock, 15:04
	Notes          string
	IdempotencyKey string
}

func (r BookRequest) hash() string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		r.BusinessID, r.ServiceID, r.StaffID, r.CustomerID, r.Date, r.Start,
	}, "|")))
	return hex.EncodeToString(sum[:])
}

// Book creates an appointment on a currently-valid slot. When the request
// carries an idempotency key already finalized by an earlier call, the
// original appointment is returned and created is false.
func (t *Transactor) Book(ctx context.Context, req BookRequest) (appt model.Appointment, created bool, err error) {
	if req.ServiceID == "" || req.CustomerID == "" {
		return model.Appointment{}, false, fmt.Errorf("service_id and customer_id are required: %w", model.ErrInvalidArgument)
	}
	scope := model.Scope{BusinessID: req.BusinessID, StaffID: req.StaffID}

	svc, err := t.cal.GetService(ctx, req.BusinessID, req.ServiceID)
	if err != nil {
		return model.Appointment{}, false, err
	}

	day, err := t.resolver.OpenWindows(ctx, req.Date, req.ServiceID, scope)
	if err != nil {
		return model.Appointment{}, false, err
	}
	start, err := localStart(day, req.Start)
	if err != nil {
		return model.Appointment{}, false, err
	}
	end := start.Add(time.Duration(svc.DurationMinutes) * time.Minute)
	now := t.now()
	if start.Before(now) {
		return model.Appointment{}, false, fmt.Errorf("slot %s is in the past: %w", start.Format(time.RFC3339), model.ErrInvalidArgument)
	}

	tx, err := t.appts.Begin(ctx)
	if err != nil {
		return model.Appointment{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if req.IdempotencyKey != "" {
		rec, err := t.appts.ClaimIdempotencyKey(ctx, tx, req.BusinessID, req.IdempotencyKey, req.hash())
		if err != nil {
			return model.Appointment{}, false, err
		}
		if rec != nil {
			prior, err := t.appts.GetByID(ctx, req.BusinessID, rec.AppointmentID)
			if err != nil {
				return model.Appointment{}, false, err
			}
			return prior, false, tx.Commit(ctx)
		}
	}

	if err := t.validateSlot(ctx, tx, day, svc, scope, start, end, now, ""); err != nil {
		return model.Appointment{}, false, err
	}

	status := model.StatusPending
	if day.Business.AutoConfirm {
		status = model.StatusConfirmed
	}
	appt = model.Appointment{
		BusinessID: req.BusinessID,
		ServiceID:  req.ServiceID,
		StaffID:    req.StaffID,
		CustomerID: req.CustomerID,
		StartTime:  start,
		EndTime:    end,
		Status:     status,
		PriceCents: svc.PriceCents,
		Currency:   svc.Currency,
		Notes:      req.Notes,
	}
	appt.ID, err = t.appts.Insert(ctx, tx, &appt)
	if err != nil {
		if storage.IsConflict(err) {
			return model.Appointment{}, false, fmt.Errorf("slot %s taken at commit: %w", start.Format(time.RFC3339), model.ErrSlotConflict)
		}
		return model.Appointment{}, false, err
	}

	if req.IdempotencyKey != "" {
		if err := t.appts.FinalizeIdempotencyKey(ctx, tx, req.BusinessID, req.IdempotencyKey, appt.ID); err != nil {
			return model.Appointment{}, false, err
		}
	}

	evt, err := outbox.AppointmentEvent(outbox.TopicAppointmentBooked, appt, appointmentPayload(appt))
	if err != nil {
		return model.Appointment{}, false, err
	}
	if err := t.outbox.Insert(ctx, tx, evt); err != nil {
		return model.Appointment{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, false, err
	}

	t.logger.Info("appointment booked",
		"appointment_id", appt.ID, "business_id", appt.BusinessID,
		"start", appt.StartTime, "status", string(appt.Status))
	return appt, true, nil
}

type UpdateRequest struct {
	Date       string  // with Start: move the appointment
	Start      string
	StaffID    *string // nil keeps the current assignment
	Notes      *string
	PriceCents *int64
}

func (r UpdateRequest) moves() bool {
	return r.Date != "" || r.Start != "" || r.StaffID != nil
}

// Update edits an active appointment. Detail-only edits (notes, price)
// skip calendar validation entirely; any change to date, start time or
// staff assignment re-runs the full slot check under the new scope.
func (t *Transactor) Update(ctx context.Context, businessID, apptID string, req UpdateRequest) (model.Appointment, error) {
	tx, err := t.appts.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := t.appts.GetForUpdate(ctx, tx, businessID, apptID)
	if err != nil {
		return model.Appointment{}, err
	}
	if appt.Status.Terminal() {
		return model.Appointment{}, fmt.Errorf("appointment %s is %s: %w", apptID, appt.Status, model.ErrInvalidStateTransition)
	}

	if req.Notes != nil || req.PriceCents != nil {
		if err := t.appts.UpdateDetails(ctx, tx, businessID, apptID, req.Notes, req.PriceCents); err != nil {
			return model.Appointment{}, err
		}
		if req.Notes != nil {
			appt.Notes = *req.Notes
		}
		if req.PriceCents != nil {
			appt.PriceCents = *req.PriceCents
		}
	}

	if req.moves() {
		staffID := appt.StaffID
		if req.StaffID != nil {
			staffID = *req.StaffID
		}
		date := req.Date
		startClock := req.Start
		svc, err := t.cal.GetService(ctx, businessID, appt.ServiceID)
		if err != nil {
			return model.Appointment{}, err
		}
		biz, err := t.cal.GetBusiness(ctx, businessID)
		if err != nil {
			return model.Appointment{}, err
		}
		loc, err := time.LoadLocation(biz.Timezone)
		if err != nil {
			return model.Appointment{}, fmt.Errorf("business %s timezone %q: %w", biz.ID, biz.Timezone, model.ErrInvalidBusinessState)
		}
		if date == "" {
			date = appt.StartTime.In(loc).Format(calendar.DateLayout)
		}
		if startClock == "" {
			startClock = appt.StartTime.In(loc).Format(ClockLayout)
		}
		moved, err := t.reschedule(ctx, tx, appt, svc, date, startClock, staffID)
		if err != nil {
			return model.Appointment{}, err
		}
		appt = moved
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

// Reschedule moves an active appointment to a new local date and start
// clock, keeping the staff assignment. The closure engine drives this.
func (t *Transactor) Reschedule(ctx context.Context, businessID, apptID, date, startClock string) (model.Appointment, error) {
	tx, err := t.appts.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := t.appts.GetForUpdate(ctx, tx, businessID, apptID)
	if err != nil {
		return model.Appointment{}, err
	}
	if !appt.Status.Active() {
		return model.Appointment{}, fmt.Errorf("appointment %s is %s: %w", apptID, appt.Status, model.ErrInvalidStateTransition)
	}
	svc, err := t.cal.GetService(ctx, businessID, appt.ServiceID)
	if err != nil {
		return model.Appointment{}, err
	}
	moved, err := t.reschedule(ctx, tx, appt, svc, date, startClock, appt.StaffID)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}
	return moved, nil
}

func (t *Transactor) reschedule(ctx context.Context, tx pgx.Tx, appt model.Appointment, svc model.Service, date, startClock, staffID string) (model.Appointment, error) {
	scope := model.Scope{BusinessID: appt.BusinessID, StaffID: staffID}
	day, err := t.resolver.OpenWindows(ctx, date, appt.ServiceID, scope)
	if err != nil {
		return model.Appointment{}, err
	}
	start, err := localStart(day, startClock)
	if err != nil {
		return model.Appointment{}, err
	}
	end := start.Add(time.Duration(svc.DurationMinutes) * time.Minute)
	now := t.now()
	if start.Before(now) {
		return model.Appointment{}, fmt.Errorf("slot %s is in the past: %w", start.Format(time.RFC3339), model.ErrInvalidArgument)
	}
	if err := t.validateSlot(ctx, tx, day, svc, scope, start, end, now, appt.ID); err != nil {
		return model.Appointment{}, err
	}

	prevStart := appt.StartTime
	if err := t.appts.UpdateSchedule(ctx, tx, appt.BusinessID, appt.ID, start, end, staffID); err != nil {
		if storage.IsConflict(err) {
			return model.Appointment{}, fmt.Errorf("slot %s taken at commit: %w", start.Format(time.RFC3339), model.ErrSlotConflict)
		}
		return model.Appointment{}, err
	}
	appt.StartTime, appt.EndTime, appt.StaffID = start, end, staffID

	p := appointmentPayload(appt)
	p.PrevStartTime = prevStart
	evt, err := outbox.AppointmentEvent(outbox.TopicAppointmentRescheduled, appt, p)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := t.outbox.Insert(ctx, tx, evt); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

// Transition moves one appointment through the lifecycle state machine.
func (t *Transactor) Transition(ctx context.Context, businessID, apptID string, in lifecycle.Input) (model.Appointment, error) {
	tx, err := t.appts.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := t.transitionInTx(ctx, tx, businessID, apptID, in)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

func (t *Transactor) transitionInTx(ctx context.Context, tx pgx.Tx, businessID, apptID string, in lifecycle.Input) (model.Appointment, error) {
	appt, err := t.appts.GetForUpdate(ctx, tx, businessID, apptID)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := lifecycle.Validate(appt, in, t.now(), t.policy); err != nil {
		return model.Appointment{}, err
	}
	if err := t.appts.UpdateStatus(ctx, tx, businessID, apptID, in.Target, in.Reason, in.Notes); err != nil {
		return model.Appointment{}, err
	}

	prev := appt.Status
	appt.Status = in.Target
	switch in.Target {
	case model.StatusCanceled:
		appt.CancelReason = in.Reason
	case model.StatusCompleted:
		appt.CompletionNotes = in.Notes
	}

	topic := outbox.TopicAppointmentStatusChanged
	if in.Target == model.StatusCanceled {
		topic = outbox.TopicAppointmentCancelled
	}
	p := appointmentPayload(appt)
	p.PrevStatus = string(prev)
	p.Reason = in.Reason
	evt, err := outbox.AppointmentEvent(topic, appt, p)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := t.outbox.Insert(ctx, tx, evt); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

// BatchFailure identifies one id that sank a batch and why. A non-empty
// failure list means nothing was persisted.
type BatchFailure struct {
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason"`
}

// BatchTransition applies the same transition to up to 50 appointments
// as one atomic unit. Any failing id aborts the whole batch; the
// returned failures identify the offenders.
func (t *Transactor) BatchTransition(ctx context.Context, businessID string, apptIDs []string, in lifecycle.Input) ([]BatchFailure, error) {
	if len(apptIDs) == 0 {
		return nil, fmt.Errorf("empty batch: %w", model.ErrInvalidArgument)
	}
	if len(apptIDs) > MaxBatchSize {
		return nil, fmt.Errorf("batch of %d exceeds limit %d: %w", len(apptIDs), MaxBatchSize, model.ErrInvalidArgument)
	}
	var failures []BatchFailure
	for _, id := range apptIDs {
		if err := storage.EnsureUUID(id); err != nil {
			failures = append(failures, BatchFailure{AppointmentID: id, Reason: "malformed id"})
		}
	}
	if len(failures) > 0 {
		return failures, fmt.Errorf("batch rejected: %w", model.ErrInvalidArgument)
	}

	tx, err := t.appts.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, id := range apptIDs {
		if _, err := t.transitionInTx(ctx, tx, businessID, id, in); err != nil {
			failures = append(failures, BatchFailure{AppointmentID: id, Reason: err.Error()})
		}
	}
	if len(failures) > 0 {
		return failures, fmt.Errorf("batch rejected: %w", model.ErrInvalidStateTransition)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	t.logger.Info("batch transition applied", "business_id", businessID, "count", len(apptIDs), "target", string(in.Target))
	return nil, nil
}

// validateSlot re-derives the slot set inside the transaction and checks
// membership. A start outside the open windows is a closed-business
// error; a start inside the windows but colliding with another active
// booking (service buffer included) is a slot conflict.
func (t *Transactor) validateSlot(ctx context.Context, tx pgx.Tx, day calendar.Day, svc model.Service, scope model.Scope, start, end time.Time, now time.Time, excludeID string) error {
	duration := end.Sub(start)
	step := time.Duration(day.Business.GranularityMinutes) * time.Minute
	if step <= 0 {
		step = 15 * time.Minute
	}

	if !availability.ContainsSlot(day.Windows, duration, step, nil, now, start) {
		return fmt.Errorf("business closed at %s: %w", start.Format(time.RFC3339), model.ErrBusinessClosed)
	}

	buffer := time.Duration(svc.BufferMinutes) * time.Minute
	dayEnd := day.Date.AddDate(0, 0, 1)
	existing, err := t.appts.ListActiveOverlapping(ctx, tx, scope, day.Date.Add(-buffer), dayEnd.Add(buffer), excludeID)
	if err != nil {
		return err
	}
	busy := make([]availability.Interval, 0, len(existing))
	for _, e := range existing {
		busy = append(busy, availability.Interval{Start: e.StartTime.Add(-buffer), End: e.EndTime.Add(buffer)})
	}
	if !availability.ContainsSlot(day.Windows, duration, step, busy, now, start) {
		return fmt.Errorf("slot %s unavailable: %w", start.Format(time.RFC3339), model.ErrSlotConflict)
	}
	return nil
}

func localStart(day calendar.Day, clock string) (time.Time, error) {
	t, err := time.ParseInLocation(ClockLayout, clock, day.Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid start time %q: %w", clock, model.ErrInvalidArgument)
	}
	return day.Date.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute), nil
}

func appointmentPayload(a model.Appointment) outbox.AppointmentPayload {
	return outbox.AppointmentPayload{
		AppointmentID: a.ID,
		BusinessID:    a.BusinessID,
		ServiceID:     a.ServiceID,
		StaffID:       a.StaffID,
		CustomerID:    a.CustomerID,
		StartTime:     a.StartTime,
		EndTime:       a.EndTime,
		Status:        string(a.Status),
	}
}
