package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/slotbook/slotbook/libs/httpx"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/booking"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
)

// Identity headers set by the gateway after authentication. The core
// trusts them; who may call what is decided upstream.
const (
	HeaderBusinessID = "X-Business-Id"
	HeaderUserID     = "X-User-Id"
)

func businessID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(HeaderBusinessID))
}

func userID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(HeaderUserID))
}

func requireBusiness(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := businessID(r)
	if id == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "missing "+HeaderBusinessID+" header")
		return "", false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "invalid json body")
		return false
	}
	return true
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, model.ErrInvalidArgument)...)
}

// parseClockRange converts a {"start":"09:00","end":"17:30"} body into
// minutes from local midnight.
func parseClockRange(body clockRangeBody) (model.ClockRange, error) {
	start, err := time.Parse(booking.ClockLayout, strings.TrimSpace(body.Start))
	if err != nil {
		return model.ClockRange{}, invalidf("invalid clock time %q", body.Start)
	}
	end, err := time.Parse(booking.ClockLayout, strings.TrimSpace(body.End))
	if err != nil {
		return model.ClockRange{}, invalidf("invalid clock time %q", body.End)
	}
	cr := model.ClockRange{
		StartMinute: start.Hour()*60 + start.Minute(),
		EndMinute:   end.Hour()*60 + end.Minute(),
	}
	if !cr.Valid() {
		return model.ClockRange{}, invalidf("range %s-%s is empty or reversed", body.Start, body.End)
	}
	return cr, nil
}

// respondError translates a core error into its wire shape. Errors
// outside the taxonomy are logged and surface as an opaque 500.
func respondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	kind := model.ErrorKind(err)
	switch kind {
	case "not_found":
		httpx.WriteError(w, http.StatusNotFound, kind, err.Error())
	case "slot_conflict":
		httpx.WriteError(w, http.StatusConflict, kind, err.Error())
	case "invalid_state_transition", "invalid_business_state", "business_closed":
		httpx.WriteError(w, http.StatusUnprocessableEntity, kind, err.Error())
	case "invalid_argument":
		httpx.WriteError(w, http.StatusBadRequest, kind, err.Error())
	default:
		logger.Error("internal error", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
