package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/slotbook/slotbook/libs/db"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
)

type ClosureRepository struct {
	pool *db.Pool
}

func NewClosureRepository(pool *db.Pool) *ClosureRepository {
	return &ClosureRepository{pool: pool}
}

func (r *ClosureRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const closureColumns = `
	id::text, business_id::text, start_date, end_date, type, COALESCE(reason, ''),
	COALESCE(service_ids, '{}'), daily_start_minute, daily_end_minute,
	recur_freq, COALESCE(recur_interval, 0), recur_until, status,
	auto_reschedule, resched_max_days, resched_bucket, resched_allow_weekends,
	created_at, updated_at`

// Create inserts the closure inside the caller's transaction so the
// closure row and its outbox event commit together.
func (r *ClosureRepository) Create(ctx context.Context, tx pgx.Tx, c *model.Closure) (string, error) {
	id := uuid.NewString()

	var dailyStart, dailyEnd *int
	if c.DailyWindow != nil {
		dailyStart, dailyEnd = &c.DailyWindow.StartMinute, &c.DailyWindow.EndMinute
	}
	var recurFreq *string
	var recurInterval *int
	var recurUntil *time.Time
	if c.Recurrence != nil {
		f := string(c.Recurrence.Freq)
		recurFreq = &f
		recurInterval = &c.Recurrence.Interval
		if !c.Recurrence.Until.IsZero() {
			u := c.Recurrence.Until
			recurUntil = &u
		}
	}
	auto := c.AutoReschedulePolicy != nil
	var maxDays *int
	var bucket *string
	var allowWeekends *bool
	if auto {
		maxDays = &c.AutoReschedulePolicy.MaxDays
		b := string(c.AutoReschedulePolicy.Bucket)
		bucket = &b
		allowWeekends = &c.AutoReschedulePolicy.AllowWeekends
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO closures
			(id, business_id, start_date, end_date, type, reason, service_ids,
			daily_start_minute, daily_end_minute, recur_freq, recur_interval, recur_until,
			status, auto_reschedule, resched_max_days, resched_bucket, resched_allow_weekends)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 'active', $13, $14, $15, $16)
	`, id, c.BusinessID, c.StartDate, c.EndDate, string(c.Type), c.Reason, c.ServiceIDs,
		dailyStart, dailyEnd, recurFreq, recurInterval, recurUntil,
		auto, maxDays, bucket, allowWeekends)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *ClosureRepository) GetByID(ctx context.Context, businessID, closureID string) (model.Closure, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+closureColumns+`
		FROM closures
		WHERE business_id = $1 AND id = $2
	`, businessID, closureID)
	c, err := scanClosure(row)
	if err != nil {
		if IsNotFound(err) {
			return model.Closure{}, fmt.Errorf("closure %s: %w", closureID, model.ErrNotFound)
		}
		return model.Closure{}, err
	}
	return c, nil
}

// Extend pushes the closure's end date out. Only active closures extend.
func (r *ClosureRepository) Extend(ctx context.Context, businessID, closureID string, newEndDate time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE closures
		SET end_date = $3, updated_at = now()
		WHERE business_id = $1 AND id = $2 AND status = 'active' AND end_date < $3
	`, businessID, closureID, newEndDate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("active closure %s extendable to %s: %w", closureID, newEndDate.Format("2006-01-02"), model.ErrNotFound)
	}
	return nil
}

// End terminates a closure early: the end date is pulled back and the
// status flipped so the calendar stops subtracting it.
func (r *ClosureRepository) End(ctx context.Context, businessID, closureID string, endDate time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE closures
		SET end_date = LEAST(end_date, $3::date), status = 'ended', updated_at = now()
		WHERE business_id = $1 AND id = $2 AND status = 'active'
	`, businessID, closureID, endDate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("active closure %s: %w", closureID, model.ErrNotFound)
	}
	return nil
}

// ExpireDue flips non-recurring closures whose end date has passed.
// Recurring closures stay active until their until-date passes.
func (r *ClosureRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE closures
		SET status = 'expired', updated_at = now()
		WHERE status = 'active'
			AND (
				(recur_freq IS NULL AND end_date < $1::date)
				OR (recur_freq IS NOT NULL AND recur_until IS NOT NULL AND recur_until < $1::date)
			)
	`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListActiveClosures satisfies the calendar resolver's Store interface.
func (r *CalendarRepository) ListActiveClosures(ctx context.Context, businessID string) ([]model.Closure, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+closureColumns+`
		FROM closures
		WHERE business_id = $1 AND status = 'active'
		ORDER BY start_date ASC
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Closure
	for rows.Next() {
		c, err := scanClosure(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func scanClosure(row pgx.Row) (model.Closure, error) {
	var c model.Closure
	var typ, status string
	var dailyStart, dailyEnd *int
	var recurFreq *string
	var recurInterval int
	var recurUntil *time.Time
	var auto bool
	var maxDays *int
	var bucket *string
	var allowWeekends *bool

	err := row.Scan(
		&c.ID, &c.BusinessID, &c.StartDate, &c.EndDate, &typ, &c.Reason,
		&c.ServiceIDs, &dailyStart, &dailyEnd,
		&recurFreq, &recurInterval, &recurUntil, &status,
		&auto, &maxDays, &bucket, &allowWeekends,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return model.Closure{}, err
	}
	c.Type = model.ClosureType(typ)
	c.Status = model.ClosureStatus(status)
	if dailyStart != nil && dailyEnd != nil {
		c.DailyWindow = &model.ClockRange{StartMinute: *dailyStart, EndMinute: *dailyEnd}
	}
	if recurFreq != nil {
		rec := &model.Recurrence{Freq: model.RecurrenceFreq(*recurFreq), Interval: recurInterval}
		if recurUntil != nil {
			rec.Until = *recurUntil
		}
		c.Recurrence = rec
	}
	if auto {
		p := &model.ReschedulePolicy{Bucket: model.BucketAny, AllowWeekends: true}
		if maxDays != nil {
			p.MaxDays = *maxDays
		}
		if bucket != nil {
			p.Bucket = model.TimeBucket(*bucket)
		}
		if allowWeekends != nil {
			p.AllowWeekends = *allowWeekends
		}
		c.AutoReschedulePolicy = p
	}
	return c, nil
}
