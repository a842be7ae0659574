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

type AppointmentRepository struct {
	pool *db.Pool
}

func NewAppointmentRepository(pool *db.Pool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

func (r *AppointmentRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const appointmentColumns = `
	id::text, business_id::text, service_id::text, COALESCE(staff_id::text, ''),
	customer_id::text, start_time, end_time, status,
	price_cents, currency, COALESCE(notes, ''), COALESCE(cancel_reason, ''),
	COALESCE(completion_notes, ''), created_at, updated_at`

// Insert writes a new appointment inside tx. The exclusion constraint on
// (business_id, scope_key, time range) is the final word on double booking;
// callers translate the resulting 23P01 into a slot conflict.
func (r *AppointmentRepository) Insert(ctx context.Context, tx pgx.Tx, a *model.Appointment) (string, error) {
	id := uuid.NewString()
	var staffID *string
	if a.StaffID != "" {
		staffID = &a.StaffID
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO appointments
			(id, business_id, service_id, staff_id, customer_id,
			start_time, end_time, status, price_cents, currency, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, id, a.BusinessID, a.ServiceID, staffID, a.CustomerID,
		a.StartTime, a.EndTime, string(a.Status), a.PriceCents, a.Currency, a.Notes)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *AppointmentRepository) GetByID(ctx context.Context, businessID, apptID string) (model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE business_id = $1 AND id = $2
	`, businessID, apptID)
	return scanAppointment(row, apptID)
}

// GetForUpdate locks the appointment row for the life of tx. Lifecycle
// transitions and reschedules go through this so concurrent writers
// serialize on the row rather than racing the status check.
func (r *AppointmentRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, businessID, apptID string) (model.Appointment, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE business_id = $1 AND id = $2
		FOR UPDATE
	`, businessID, apptID)
	return scanAppointment(row, apptID)
}

// ListActiveOverlapping returns active appointments intersecting
// [from, to) under the booking scope. A staff scope contends only with
// that staff member's bookings; a business-wide booking contends with
// every active booking at the business.
func (r *AppointmentRepository) ListActiveOverlapping(ctx context.Context, tx pgx.Tx, scope model.Scope, from, to time.Time, excludeID string) ([]model.Appointment, error) {
	q := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE business_id = $1
			AND status IN ('pending', 'confirmed')
			AND start_time < $3 AND end_time > $2
			AND id::text <> $4`
	args := []any{scope.BusinessID, from, to, excludeID}
	if keys := scope.ContentionKeys(); keys != nil {
		q += ` AND scope_key = ANY($5)`
		args = append(args, keys)
	}
	q += ` ORDER BY start_time ASC`

	rows, err := tx.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *AppointmentRepository) UpdateSchedule(ctx context.Context, tx pgx.Tx, businessID, apptID string, start, end time.Time, staffID string) error {
	var sid *string
	if staffID != "" {
		sid = &staffID
	}
	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET start_time = $3, end_time = $4, staff_id = $5, updated_at = now()
		WHERE business_id = $1 AND id = $2
	`, businessID, apptID, start, end, sid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("appointment %s: %w", apptID, model.ErrNotFound)
	}
	return nil
}

func (r *AppointmentRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, businessID, apptID string, status model.Status, reason, notes string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = $3,
			cancel_reason = CASE WHEN $3 = 'canceled' THEN NULLIF($4, '') ELSE cancel_reason END,
			completion_notes = CASE WHEN $3 = 'completed' THEN NULLIF($5, '') ELSE completion_notes END,
			updated_at = now()
		WHERE business_id = $1 AND id = $2
	`, businessID, apptID, string(status), reason, notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("appointment %s: %w", apptID, model.ErrNotFound)
	}
	return nil
}

func (r *AppointmentRepository) UpdateDetails(ctx context.Context, tx pgx.Tx, businessID, apptID string, notes *string, priceCents *int64) error {
	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET notes = COALESCE($3, notes),
			price_cents = COALESCE($4, price_cents),
			updated_at = now()
		WHERE business_id = $1 AND id = $2
	`, businessID, apptID, notes, priceCents)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("appointment %s: %w", apptID, model.ErrNotFound)
	}
	return nil
}

// ListActiveInRange feeds the closure impact scan: active appointments
// starting inside [from, to), optionally narrowed to a service set.
func (r *AppointmentRepository) ListActiveInRange(ctx context.Context, businessID string, from, to time.Time, serviceIDs []string) ([]model.Appointment, error) {
	q := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE business_id = $1
			AND status IN ('pending', 'confirmed')
			AND start_time >= $2 AND start_time < $3`
	args := []any{businessID, from, to}
	if len(serviceIDs) > 0 {
		q += ` AND service_id::text = ANY($4)`
		args = append(args, serviceIDs)
	}
	q += ` ORDER BY start_time ASC`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

// ListUserActiveBetween returns a customer's active appointments whose
// time range intersects [from, to), earliest first.
func (r *AppointmentRepository) ListUserActiveBetween(ctx context.Context, businessID, customerID string, from, to time.Time) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE business_id = $1 AND customer_id = $2
			AND status IN ('pending', 'confirmed')
			AND start_time < $4 AND end_time > $3
		ORDER BY start_time ASC
	`, businessID, customerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

// NextUserAppointment returns the customer's earliest active appointment
// starting at or after the given instant.
func (r *AppointmentRepository) NextUserAppointment(ctx context.Context, businessID, customerID string, after time.Time) (model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE business_id = $1 AND customer_id = $2
			AND status IN ('pending', 'confirmed')
			AND start_time >= $3
		ORDER BY start_time ASC
		LIMIT 1
	`, businessID, customerID, after)
	return scanAppointment(row, "next")
}

// ListBusinessDayNonTerminal returns every appointment for the business
// overlapping [from, to) that has not reached a terminal status.
func (r *AppointmentRepository) ListBusinessDayNonTerminal(ctx context.Context, businessID string, from, to time.Time) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE business_id = $1
			AND status IN ('pending', 'confirmed')
			AND start_time < $3 AND end_time > $2
		ORDER BY start_time ASC
	`, businessID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

// CountDayByStatus aggregates the day's appointments per status for the
// monitor view.
func (r *AppointmentRepository) CountDayByStatus(ctx context.Context, businessID string, from, to time.Time) (map[model.Status]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*)
		FROM appointments
		WHERE business_id = $1 AND start_time >= $2 AND start_time < $3
		GROUP BY status
	`, businessID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[model.Status(status)] = n
	}
	return counts, rows.Err()
}

func scanAppointment(row pgx.Row, apptID string) (model.Appointment, error) {
	var a model.Appointment
	var status string
	err := row.Scan(
		&a.ID, &a.BusinessID, &a.ServiceID, &a.StaffID,
		&a.CustomerID, &a.StartTime, &a.EndTime, &status,
		&a.PriceCents, &a.Currency, &a.Notes, &a.CancelReason,
		&a.CompletionNotes, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if IsNotFound(err) {
			return model.Appointment{}, fmt.Errorf("appointment %s: %w", apptID, model.ErrNotFound)
		}
		return model.Appointment{}, err
	}
	a.Status = model.Status(status)
	return a, nil
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows, "")
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// EnsureUUID validates caller-supplied ids before they reach SQL casts.
func EnsureUUID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("malformed id %q: %w", id, model.ErrInvalidArgument)
	}
	return nil
}
