package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
)

// IdempotencyRecord is the outcome of a previously finalized booking
// request carrying the same Idempotency-Key.
type IdempotencyRecord struct {
	AppointmentID string
	RequestHash   string
}

// ClaimIdempotencyKey inserts the key inside tx, locking out concurrent
// requests with the same key until the transaction commits. When the key
// already exists it returns the finalized record; a replay with a
// different payload hash is rejected outright.
func (r *AppointmentRepository) ClaimIdempotencyKey(ctx context.Context, tx pgx.Tx, businessID, key, requestHash string) (*IdempotencyRecord, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (business_id, idempotency_key, request_hash)
		VALUES ($1, $2, $3)
		ON CONFLICT (business_id, idempotency_key) DO NOTHING
	`, businessID, key, requestHash)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 1 {
		return nil, nil
	}

	var rec IdempotencyRecord
	var apptID *string
	err = tx.QueryRow(ctx, `
		SELECT request_hash, appointment_id::text
		FROM booking_idempotency_keys
		WHERE business_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, businessID, key).Scan(&rec.RequestHash, &apptID)
	if err != nil {
		return nil, err
	}
	if rec.RequestHash != requestHash {
		return nil, fmt.Errorf("idempotency key reused with a different payload: %w", model.ErrInvalidArgument)
	}
	if apptID == nil {
		// The earlier attempt holding this key rolled back; take it over.
		return nil, nil
	}
	rec.AppointmentID = *apptID
	return &rec, nil
}

// FinalizeIdempotencyKey binds the created appointment to the key so
// replays return the original booking instead of attempting a second one.
func (r *AppointmentRepository) FinalizeIdempotencyKey(ctx context.Context, tx pgx.Tx, businessID, key, appointmentID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET appointment_id = $3, finalized_at = now()
		WHERE business_id = $1 AND idempotency_key = $2
	`, businessID, key, appointmentID)
	return err
}
