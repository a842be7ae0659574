package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/slotbook/slotbook/libs/db"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
)

// CalendarRepository serves business, hours, override and staff data: the
// read surface of the calendar resolver plus the admin write surface.
type CalendarRepository struct {
	pool *db.Pool
}

func NewCalendarRepository(pool *db.Pool) *CalendarRepository {
	return &CalendarRepository{pool: pool}
}

func (r *CalendarRepository) GetBusiness(ctx context.Context, businessID string) (model.Business, error) {
	var b model.Business
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, name, COALESCE(timezone, ''), auto_confirm, granularity_minutes
		FROM businesses
		WHERE id = $1
	`, businessID).Scan(&b.ID, &b.Name, &b.Timezone, &b.AutoConfirm, &b.GranularityMinutes)
	if err != nil {
		if IsNotFound(err) {
			return model.Business{}, fmt.Errorf("business %s: %w", businessID, model.ErrNotFound)
		}
		return model.Business{}, err
	}
	return b, nil
}

func (r *CalendarRepository) GetService(ctx context.Context, businessID, serviceID string) (model.Service, error) {
	var s model.Service
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, business_id::text, name, duration_minutes, buffer_minutes, price_cents, currency
		FROM services
		WHERE business_id = $1 AND id = $2
	`, businessID, serviceID).Scan(&s.ID, &s.BusinessID, &s.Name, &s.DurationMinutes, &s.BufferMinutes, &s.PriceCents, &s.Currency)
	if err != nil {
		if IsNotFound(err) {
			return model.Service{}, fmt.Errorf("service %s: %w", serviceID, model.ErrNotFound)
		}
		return model.Service{}, err
	}
	return s, nil
}

func (r *CalendarRepository) GetWeeklyHours(ctx context.Context, businessID string, weekday time.Weekday) ([]model.ClockRange, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_minute, end_minute
		FROM business_hours
		WHERE business_id = $1 AND weekday = $2
		ORDER BY start_minute ASC
	`, businessID, int(weekday))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanClockRanges(rows)
}

func (r *CalendarRepository) GetDateOverride(ctx context.Context, businessID, date string) ([]model.ClockRange, bool, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_minute, end_minute
		FROM business_hour_overrides
		WHERE business_id = $1 AND date = $2
		ORDER BY start_minute ASC
	`, businessID, date)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	// A fully-closed override is stored as a single (0, 0) row: the
	// override exists but contributes no open range.
	var ranges []model.ClockRange
	found := false
	for rows.Next() {
		var cr model.ClockRange
		if err := rows.Scan(&cr.StartMinute, &cr.EndMinute); err != nil {
			return nil, false, err
		}
		found = true
		if cr.Valid() {
			ranges = append(ranges, cr)
		}
	}
	if rows.Err() != nil {
		return nil, false, rows.Err()
	}
	return ranges, found, nil
}

func (r *CalendarRepository) GetStaff(ctx context.Context, businessID, staffID string) (model.Staff, error) {
	var s model.Staff
	err := r.pool.QueryRow(ctx, `
		SELECT s.id::text, s.business_id::text, s.name, s.is_active,
			EXISTS (SELECT 1 FROM staff_hours h WHERE h.staff_id = s.id)
		FROM staff s
		WHERE s.business_id = $1 AND s.id = $2
	`, businessID, staffID).Scan(&s.ID, &s.BusinessID, &s.Name, &s.IsActive, &s.HasOwnHours)
	if err != nil {
		if IsNotFound(err) {
			return model.Staff{}, fmt.Errorf("staff %s: %w", staffID, model.ErrNotFound)
		}
		return model.Staff{}, err
	}
	return s, nil
}

func (r *CalendarRepository) GetStaffHours(ctx context.Context, businessID, staffID string, weekday time.Weekday) ([]model.ClockRange, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT h.start_minute, h.end_minute
		FROM staff_hours h
		JOIN staff s ON s.id = h.staff_id
		WHERE s.business_id = $1 AND h.staff_id = $2 AND h.weekday = $3
		ORDER BY h.start_minute ASC
	`, businessID, staffID, int(weekday))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanClockRanges(rows)
}

// ReplaceWeeklyHours swaps the full set of open ranges for one weekday.
func (r *CalendarRepository) ReplaceWeeklyHours(ctx context.Context, businessID string, weekday time.Weekday, ranges []model.ClockRange) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		DELETE FROM business_hours WHERE business_id = $1 AND weekday = $2
	`, businessID, int(weekday)); err != nil {
		return err
	}
	for _, cr := range ranges {
		if !cr.Valid() {
			return fmt.Errorf("hour range %d-%d: %w", cr.StartMinute, cr.EndMinute, model.ErrInvalidArgument)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO business_hours (business_id, weekday, start_minute, end_minute)
			VALUES ($1, $2, $3, $4)
		`, businessID, int(weekday), cr.StartMinute, cr.EndMinute); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// ReplaceDateOverride replaces the override for one date. An empty ranges
// slice records a fully-closed day.
func (r *CalendarRepository) ReplaceDateOverride(ctx context.Context, businessID, date string, ranges []model.ClockRange) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		DELETE FROM business_hour_overrides WHERE business_id = $1 AND date = $2
	`, businessID, date); err != nil {
		return err
	}
	if len(ranges) == 0 {
		if _, err := tx.Exec(ctx, `
			INSERT INTO business_hour_overrides (business_id, date, start_minute, end_minute)
			VALUES ($1, $2, 0, 0)
		`, businessID, date); err != nil {
			return err
		}
		return tx.Commit(ctx)
	}
	for _, cr := range ranges {
		if !cr.Valid() {
			return fmt.Errorf("hour range %d-%d: %w", cr.StartMinute, cr.EndMinute, model.ErrInvalidArgument)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO business_hour_overrides (business_id, date, start_minute, end_minute)
			VALUES ($1, $2, $3, $4)
		`, businessID, date, cr.StartMinute, cr.EndMinute); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *CalendarRepository) DeleteDateOverride(ctx context.Context, businessID, date string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM business_hour_overrides WHERE business_id = $1 AND date = $2
	`, businessID, date)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("override for %s: %w", date, model.ErrNotFound)
	}
	return nil
}

func (r *CalendarRepository) ReplaceStaffHours(ctx context.Context, businessID, staffID string, weekday time.Weekday, ranges []model.ClockRange) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM staff WHERE id = $1 AND business_id = $2)
	`, staffID, businessID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("staff %s: %w", staffID, model.ErrNotFound)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		DELETE FROM staff_hours WHERE staff_id = $1 AND weekday = $2
	`, staffID, int(weekday)); err != nil {
		return err
	}
	for _, cr := range ranges {
		if !cr.Valid() {
			return fmt.Errorf("hour range %d-%d: %w", cr.StartMinute, cr.EndMinute, model.ErrInvalidArgument)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO staff_hours (staff_id, weekday, start_minute, end_minute)
			VALUES ($1, $2, $3, $4)
		`, staffID, int(weekday), cr.StartMinute, cr.EndMinute); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func scanClockRanges(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]model.ClockRange, error) {
	var out []model.ClockRange
	for rows.Next() {
		var cr model.ClockRange
		if err := rows.Scan(&cr.StartMinute, &cr.EndMinute); err != nil {
			return nil, err
		}
		out = append(out, cr)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
