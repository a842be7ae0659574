package inbox

import (
	"context"

	"github.com/slotbook/slotbook/libs/db"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/storage"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record marks an event id as seen. Returns false when the id was
// already recorded, which is how consumers detect redelivery.
func (r *Repository) Record(ctx context.Context, eventID string, eventType string) (bool, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
	`, eventID, eventType)
	if err == nil {
		return true, nil
	}

	if storage.IsUniqueViolation(err) {
		return false, nil
	}

	return false, err
}
