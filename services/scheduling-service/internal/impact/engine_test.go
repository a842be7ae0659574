package impact

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
)

func TestBlocksAppointment_WholeDayClosure(t *testing.T) {
	e := &Engine{}
	c := model.Closure{}
	a := model.Appointment{
		StartTime: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC),
	}
	if !e.blocksAppointment(c, a, time.UTC) {
		t.Fatal("a closure without a daily window blocks the whole day")
	}
}

func TestBlocksAppointment_DailyWindow(t *testing.T) {
	e := &Engine{}
	c := model.Closure{DailyWindow: &model.ClockRange{StartMinute: 12 * 60, EndMinute: 14 * 60}}

	morning := model.Appointment{
		StartTime: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}
	if e.blocksAppointment(c, morning, time.UTC) {
		t.Fatal("a 09:00 appointment is clear of a 12:00-14:00 closure")
	}

	straddling := model.Appointment{
		StartTime: time.Date(2026, 3, 2, 11, 30, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 3, 2, 12, 30, 0, 0, time.UTC),
	}
	if !e.blocksAppointment(c, straddling, time.UTC) {
		t.Fatal("an appointment overlapping the window's start is blocked")
	}

	boundary := model.Appointment{
		StartTime: time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC),
	}
	if e.blocksAppointment(c, boundary, time.UTC) {
		t.Fatal("a 14:00 start does not overlap a half-open window ending 14:00")
	}
}

func TestClosureCreatedHandler_IgnoresMalformedPayloads(t *testing.T) {
	h := ClosureCreatedHandler(nil, slog.New(slog.DiscardHandler))
	if err := h(context.Background(), kafka.Message{Value: []byte("{broken")}); err != nil {
		t.Fatalf("malformed payloads are dropped, not retried: %v", err)
	}
	if err := h(context.Background(), kafka.Message{Value: []byte(`{"closure_id": ""}`)}); err != nil {
		t.Fatalf("incomplete payloads are dropped: %v", err)
	}
}
