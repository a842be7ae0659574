package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/slotbook/slotbook/libs/httpx"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/liveview"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
)

type LiveViewHandler struct {
	projector *liveview.Projector
	logger    *slog.Logger
}

func NewLiveViewHandler(projector *liveview.Projector, logger *slog.Logger) *LiveViewHandler {
	return &LiveViewHandler{projector: projector, logger: logger}
}

// MonitorQueue serves the waiting-room display. Polled hard, cached short.
func (h *LiveViewHandler) MonitorQueue(w http.ResponseWriter, r *http.Request) {
	bizID, ok := requireBusiness(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	size := 0
	if raw := strings.TrimSpace(q.Get("size")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "size must be an integer")
			return
		}
		size = n
	}
	withStats := q.Get("stats") == "true"

	view, err := h.projector.MonitorQueue(r.Context(), bizID, strings.TrimSpace(q.Get("date")), size, withStats)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, monitorResponse{
		Date:  view.Date,
		Queue: toAppointmentResponses(view.Queue),
		Stats: view.Stats,
	})
}

type monitorResponse struct {
	Date  string                `json:"date"`
	Queue []appointmentResponse `json:"queue"`
	Stats map[string]int        `json:"stats,omitempty"`
}

type currentHourResponse struct {
	Nearest      *appointmentResponse  `json:"nearest,omitempty"`
	Appointments []appointmentResponse `json:"appointments"`
}

// CurrentHour returns the caller's remaining appointments in this clock
// hour plus the nearest one.
func (h *LiveViewHandler) CurrentHour(w http.ResponseWriter, r *http.Request) {
	bizID, ok := requireBusiness(w, r)
	if !ok {
		return
	}
	uid := userID(r)
	if uid == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "missing "+HeaderUserID+" header")
		return
	}
	appts, err := h.projector.InCurrentHour(r.Context(), bizID, uid)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	resp := currentHourResponse{Appointments: toAppointmentResponses(appts)}
	if len(appts) > 0 {
		nearest := toAppointmentResponse(appts[0])
		resp.Nearest = &nearest
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// Next returns the caller's next upcoming appointment, hour-agnostic.
func (h *LiveViewHandler) Next(w http.ResponseWriter, r *http.Request) {
	bizID, ok := requireBusiness(w, r)
	if !ok {
		return
	}
	uid := userID(r)
	if uid == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "missing "+HeaderUserID+" header")
		return
	}
	appt, err := h.projector.Next(r.Context(), bizID, uid)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if appt == nil {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"appointment": nil})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"appointment": toAppointmentResponse(*appt)})
}

func toAppointmentResponses(appts []model.Appointment) []appointmentResponse {
	out := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a))
	}
	return out
}
