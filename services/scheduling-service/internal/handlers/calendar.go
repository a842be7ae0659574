package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/slotbook/slotbook/libs/httpx"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/calendar"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/storage"
)

// CalendarHandler owns the admin surface for working hours: weekly
// defaults, date overrides and per-staff hours.
type CalendarHandler struct {
	cal    *storage.CalendarRepository
	logger *slog.Logger
}

func NewCalendarHandler(cal *storage.CalendarRepository, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{cal: cal, logger: logger}
}

type weeklyHoursRequest struct {
	// Weekday 0 (Sunday) through 6 (Saturday). An absent weekday is
	// left untouched; an empty range list closes that weekday.
	Hours map[string][]clockRangeBody `json:"hours"`
}

func (h *CalendarHandler) PutWeeklyHours(w http.ResponseWriter, r *http.Request) {
	bizID, ok := requireBusiness(w, r)
	if !ok {
		return
	}
	var req weeklyHoursRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	byDay, err := parseWeeklyHours(req.Hours)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	for day, ranges := range byDay {
		if err := h.cal.ReplaceWeeklyHours(r.Context(), bizID, time.Weekday(day), ranges); err != nil {
			respondError(w, h.logger, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

type dateOverrideRequest struct {
	Date  string           `json:"date"`
	Hours []clockRangeBody `json:"hours"` // empty list = fully closed
}

func (h *CalendarHandler) PutDateOverride(w http.ResponseWriter, r *http.Request) {
	bizID, ok := requireBusiness(w, r)
	if !ok {
		return
	}
	var req dateOverrideRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	date := strings.TrimSpace(req.Date)
	if !validDate(date) {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "invalid date")
		return
	}
	ranges, err := parseClockRanges(req.Hours)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if err := h.cal.ReplaceDateOverride(r.Context(), bizID, date, ranges); err != nil {
		respondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CalendarHandler) DeleteDateOverride(w http.ResponseWriter, r *http.Request) {
	bizID, ok := requireBusiness(w, r)
	if !ok {
		return
	}
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if !validDate(date) {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "invalid date")
		return
	}
	if err := h.cal.DeleteDateOverride(r.Context(), bizID, date); err != nil {
		respondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CalendarHandler) PutStaffHours(w http.ResponseWriter, r *http.Request) {
	bizID, ok := requireBusiness(w, r)
	if !ok {
		return
	}
	staffID := r.PathValue("id")
	if err := storage.EnsureUUID(staffID); err != nil {
		respondError(w, h.logger, err)
		return
	}
	var req weeklyHoursRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	byDay, err := parseWeeklyHours(req.Hours)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	for day, ranges := range byDay {
		if err := h.cal.ReplaceStaffHours(r.Context(), bizID, staffID, time.Weekday(day), ranges); err != nil {
			respondError(w, h.logger, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseWeeklyHours(raw map[string][]clockRangeBody) (map[int][]model.ClockRange, error) {
	out := make(map[int][]model.ClockRange, len(raw))
	for key, bodies := range raw {
		day, err := strconv.Atoi(key)
		if err != nil || day < 0 || day > 6 {
			return nil, invalidf("weekday %q out of range 0-6", key)
		}
		ranges, err := parseClockRanges(bodies)
		if err != nil {
			return nil, err
		}
		out[day] = ranges
	}
	return out, nil
}

func parseClockRanges(bodies []clockRangeBody) ([]model.ClockRange, error) {
	out := make([]model.ClockRange, 0, len(bodies))
	for _, b := range bodies {
		cr, err := parseClockRange(b)
		if err != nil {
			return nil, err
		}
		out = append(out, cr)
	}
	return out, nil
}

func validDate(date string) bool {
	_, err := time.Parse(calendar.DateLayout, date)
	return err == nil
}
