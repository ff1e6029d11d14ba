package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/billbatista/acasinha-spend/apperr"
	"github.com/billbatista/acasinha-spend/spending"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var errInvalidBody = apperr.BadRequest("invalid request body")

type errorBody struct {
	Error     string           `json:"error"`
	Remaining *decimal.Decimal `json:"remaining,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func statusFor(err error) int {
	switch apperr.Kind(err) {
	case apperr.ErrNotFound:
		return http.StatusNotFound
	case apperr.ErrForbidden:
		return http.StatusForbidden
	case apperr.ErrBadRequest:
		return http.StatusBadRequest
	case apperr.ErrConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "error", err, "method", r.Method, "path", r.URL.Path)
		writeJSON(w, status, errorBody{Error: "internal server error"})
		return
	}

	body := errorBody{Error: err.Error()}
	var capErr *spending.CapacityError
	if errors.As(err, &capErr) {
		body.Remaining = &capErr.Remaining
	}
	writeJSON(w, status, body)
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errInvalidBody
	}
	return nil
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperr.BadRequest("invalid " + name)
	}
	return id, nil
}

func queryID(r *http.Request, name string) (uuid.NullUUID, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return uuid.NullUUID{}, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.NullUUID{}, apperr.BadRequest("invalid " + name)
	}
	return uuid.NullUUID{UUID: id, Valid: true}, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperr.BadRequest("invalid " + name)
	}
	return n, nil
}

// dateRange reads from and to. A bare date in to includes that whole day, so
// the returned To is exclusive.
func dateRange(r *http.Request) (from, to time.Time, err error) {
	if from, err = parseTime(r.URL.Query().Get("from"), false); err != nil {
		return from, to, apperr.BadRequest("invalid from date")
	}
	if to, err = parseTime(r.URL.Query().Get("to"), true); err != nil {
		return from, to, apperr.BadRequest("invalid to date")
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return from, to, apperr.BadRequest("from must be before to")
	}
	return from, to, nil
}

func parseTime(v string, end bool) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		if end {
			t = t.AddDate(0, 0, 1)
		}
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}
