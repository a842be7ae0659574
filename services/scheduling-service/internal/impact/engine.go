package impact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/slotbook/slotbook/services/scheduling-service/internal/booking"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/calendar"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/closure"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/outbox"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/storage"
)

// Engine analyses what a closure does to existing bookings and, when the
// closure carries a reschedule policy, moves each impacted appointment to
// the earliest slot the policy permits. Appointments it cannot place are
// reported and left exactly where they were.
type Engine struct {
	trans    *booking.Transactor
	appts    *storage.AppointmentRepository
	closures *storage.ClosureRepository
	cal      *storage.CalendarRepository
	outbox   *outbox.Repository
	logger   *slog.Logger
	now      func() time.Time
}

func NewEngine(trans *booking.Transactor, appts *storage.AppointmentRepository, closures *storage.ClosureRepository, cal *storage.CalendarRepository, ob *outbox.Repository, logger *slog.Logger) *Engine {
	return &Engine{
		trans:    trans,
		appts:    appts,
		closures: closures,
		cal:      cal,
		outbox:   ob,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock fixes the engine's notion of now. Tests only.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

type ImpactQuery struct {
	BusinessID string
	StartDate  string // business-local, 2006-01-02, inclusive
	EndDate    string
	ServiceIDs []string
}

// PreviewImpact lists the active appointments a would-be closure over the
// date range would hit. Pure read; nothing changes.
func (e *Engine) PreviewImpact(ctx context.Context, q ImpactQuery) ([]model.Appointment, error) {
	loc, err := e.businessLocation(ctx, q.BusinessID)
	if err != nil {
		return nil, err
	}
	from, err := time.ParseInLocation(calendar.DateLayout, q.StartDate, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid start_date %q: %w", q.StartDate, model.ErrInvalidArgument)
	}
	endDay, err := time.ParseInLocation(calendar.DateLayout, q.EndDate, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid end_date %q: %w", q.EndDate, model.ErrInvalidArgument)
	}
	if endDay.Before(from) {
		return nil, fmt.Errorf("end_date precedes start_date: %w", model.ErrInvalidArgument)
	}
	return e.appts.ListActiveInRange(ctx, q.BusinessID, from, endDay.AddDate(0, 0, 1), q.ServiceIDs)
}

type RescheduleFailure struct {
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason"`
}

type ImpactReport struct {
	ClosureID   string                       `json:"closure_id"`
	Affected    int                          `json:"affected"`
	Rescheduled []model.RescheduleSuggestion `json:"rescheduled"`
	Failures    []RescheduleFailure          `json:"failures"`
}

// AutoReschedule finds every active appointment the closure blocks and
// moves each one to the earliest policy-conforming slot, searching dates
// from the day after the appointment's original date up to the policy
// horizon. Each move commits on its own through the booking path, so a
// lost race on one appointment never unwinds the others.
func (e *Engine) AutoReschedule(ctx context.Context, businessID, closureID string) (ImpactReport, error) {
	c, err := e.closures.GetByID(ctx, businessID, closureID)
	if err != nil {
		return ImpactReport{}, err
	}
	policy := c.AutoReschedulePolicy
	if policy == nil {
		return ImpactReport{}, fmt.Errorf("closure %s has no reschedule policy: %w", closureID, model.ErrInvalidArgument)
	}
	if policy.MaxDays <= 0 {
		policy.MaxDays = 30
	}

	loc, err := e.businessLocation(ctx, businessID)
	if err != nil {
		return ImpactReport{}, err
	}

	impacted, err := e.impactedAppointments(ctx, c, loc)
	if err != nil {
		return ImpactReport{}, err
	}

	report := ImpactReport{ClosureID: closureID, Affected: len(impacted)}
	for _, appt := range impacted {
		sug, err := e.rescheduleOne(ctx, appt, c, *policy, loc)
		if err != nil {
			report.Failures = append(report.Failures, RescheduleFailure{
				AppointmentID: appt.ID,
				Reason:        err.Error(),
			})
			continue
		}
		report.Rescheduled = append(report.Rescheduled, sug)
	}

	if err := e.emitImpact(ctx, c, report); err != nil {
		e.logger.Error("closure impact event not recorded", "closure_id", closureID, "err", err)
	}
	e.logger.Info("closure impact processed",
		"closure_id", closureID, "affected", report.Affected,
		"rescheduled", len(report.Rescheduled), "failed", len(report.Failures))
	return report, nil
}

// impactedAppointments expands the closure into concrete occurrences and
// collects the active appointments falling inside them. A closure with a
// daily window only hits appointments overlapping that window's clock
// range on each covered day.
func (e *Engine) impactedAppointments(ctx context.Context, c model.Closure, loc *time.Location) ([]model.Appointment, error) {
	now := e.now()
	spans := closure.Occurrences(c, now, now.Add(closure.ExpansionHorizon))

	seen := make(map[string]bool)
	var out []model.Appointment
	for _, span := range spans {
		from := time.Date(span.Start.Year(), span.Start.Month(), span.Start.Day(), 0, 0, 0, 0, loc)
		to := time.Date(span.End.Year(), span.End.Month(), span.End.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
		appts, err := e.appts.ListActiveInRange(ctx, c.BusinessID, from, to, c.ServiceIDs)
		if err != nil {
			return nil, err
		}
		for _, a := range appts {
			if seen[a.ID] || !e.blocksAppointment(c, a, loc) {
				continue
			}
			seen[a.ID] = true
			out = append(out, a)
		}
	}
	return out, nil
}

func (e *Engine) blocksAppointment(c model.Closure, a model.Appointment, loc *time.Location) bool {
	if c.DailyWindow == nil {
		return true
	}
	local := a.StartTime.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	blockStart := dayStart.Add(time.Duration(c.DailyWindow.StartMinute) * time.Minute)
	blockEnd := dayStart.Add(time.Duration(c.DailyWindow.EndMinute) * time.Minute)
	return a.StartTime.In(loc).Before(blockEnd) && blockStart.Before(a.EndTime.In(loc))
}

// rescheduleOne walks candidate dates starting the day after the original
// appointment, earliest date then earliest time, and applies the first
// slot the policy accepts. A commit-time conflict on one slot falls
// through to the next candidate instead of failing the appointment.
func (e *Engine) rescheduleOne(ctx context.Context, appt model.Appointment, c model.Closure, policy model.ReschedulePolicy, loc *time.Location) (model.RescheduleSuggestion, error) {
	origDay := appt.StartTime.In(loc)
	for offset := 1; offset <= policy.MaxDays; offset++ {
		candidate := origDay.AddDate(0, 0, offset)
		if !policy.AllowWeekends && (candidate.Weekday() == time.Saturday || candidate.Weekday() == time.Sunday) {
			continue
		}
		date := candidate.Format(calendar.DateLayout)

		slots, day, err := e.trans.ListSlots(ctx, booking.SlotQuery{
			BusinessID: appt.BusinessID,
			ServiceID:  appt.ServiceID,
			StaffID:    appt.StaffID,
			Date:       date,
		})
		if err != nil {
			return model.RescheduleSuggestion{}, err
		}
		for _, slot := range slots {
			if !policy.Bucket.Contains(slot.In(day.Location)) {
				continue
			}
			moved, err := e.trans.Reschedule(ctx, appt.BusinessID, appt.ID, date, slot.In(day.Location).Format(booking.ClockLayout))
			if err != nil {
				if errors.Is(err, model.ErrSlotConflict) {
					continue
				}
				return model.RescheduleSuggestion{}, err
			}
			return model.RescheduleSuggestion{
				AppointmentID: appt.ID,
				Date:          date,
				StartTime:     moved.StartTime,
				EndTime:       moved.EndTime,
			}, nil
		}
	}
	return model.RescheduleSuggestion{}, fmt.Errorf("no slot within %d days", policy.MaxDays)
}

func (e *Engine) emitImpact(ctx context.Context, c model.Closure, report ImpactReport) error {
	payload := outbox.ClosureImpactPayload{
		ClosureID:       c.ID,
		BusinessID:      c.BusinessID,
		AffectedInTotal: report.Affected,
	}
	for _, s := range report.Rescheduled {
		payload.RescheduledIDs = append(payload.RescheduledIDs, s.AppointmentID)
	}
	for _, f := range report.Failures {
		payload.UnplaceableIDs = append(payload.UnplaceableIDs, f.AppointmentID)
	}
	evt, err := outbox.ClosureEvent(outbox.TopicClosureImpact, c.ID, payload)
	if err != nil {
		return err
	}

	tx, err := e.appts.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := e.outbox.Insert(ctx, tx, evt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (e *Engine) businessLocation(ctx context.Context, businessID string) (*time.Location, error) {
	biz, err := e.cal.GetBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if biz.Timezone == "" {
		return nil, fmt.Errorf("business %s has no timezone configured: %w", businessID, model.ErrInvalidBusinessState)
	}
	loc, err := time.LoadLocation(biz.Timezone)
	if err != nil {
		return nil, fmt.Errorf("business %s timezone %q: %w", businessID, biz.Timezone, model.ErrInvalidBusinessState)
	}
	return loc, nil
}
