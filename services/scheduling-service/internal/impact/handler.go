package impact

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/consumer"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/outbox"
)

// ClosureCreatedHandler runs the auto-reschedule search when a closure
// lands on the bus. Closures without a reschedule policy are simply
// acknowledged: the calendar already subtracts them.
func ClosureCreatedHandler(engine *Engine, logger *slog.Logger) consumer.Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var p outbox.ClosureCreatedPayload
		if err := json.Unmarshal(msg.Value, &p); err != nil {
			logger.Error("malformed closure event", "err", err)
			return nil
		}
		if p.ClosureID == "" || p.BusinessID == "" {
			return nil
		}
		_, err := engine.AutoReschedule(ctx, p.BusinessID, p.ClosureID)
		if errors.Is(err, model.ErrInvalidArgument) || errors.Is(err, model.ErrNotFound) {
			return nil
		}
		return err
	}
}
