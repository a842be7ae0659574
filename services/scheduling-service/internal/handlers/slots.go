package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/slotbook/slotbook/libs/httpx"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/booking"
)

type SlotHandler struct {
	trans  *booking.Transactor
	logger *slog.Logger
}

func NewSlotHandler(trans *booking.Transactor, logger *slog.Logger) *SlotHandler {
	return &SlotHandler{trans: trans, logger: logger}
}

type slotItem struct {
	Start     string `json:"start"`      // business-local clock, 15:04
	StartTime string `json:"start_time"` // absolute, RFC3339
}

type slotsResponse struct {
	Date  string     `json:"date"`
	Slots []slotItem `json:"slots"`
}

// List enumerates bookable start times for business+service(+staff)+date.
// An empty slot list with 200 is the normal answer for a closed day.
func (h *SlotHandler) List(w http.ResponseWriter, r *http.Request) {
	bizID, ok := requireBusiness(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	serviceID := strings.TrimSpace(q.Get("service_id"))
	date := strings.TrimSpace(q.Get("date"))
	if serviceID == "" || date == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "service_id and date are required")
		return
	}

	slots, day, err := h.trans.ListSlots(r.Context(), booking.SlotQuery{
		BusinessID: bizID,
		ServiceID:  serviceID,
		StaffID:    strings.TrimSpace(q.Get("staff_id")),
		Date:       date,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	resp := slotsResponse{Date: date, Slots: make([]slotItem, 0, len(slots))}
	for _, s := range slots {
		resp.Slots = append(resp.Slots, slotItem{
			Start:     s.In(day.Location).Format(booking.ClockLayout),
			StartTime: s.Format(time.RFC3339),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
