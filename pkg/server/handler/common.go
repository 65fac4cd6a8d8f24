package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/IlyushaZ/rental-store/pkg/identity"
	"github.com/IlyushaZ/rental-store/pkg/model"
	"github.com/IlyushaZ/rental-store/pkg/service"
	"github.com/go-playground/validator/v10"
)

const maxBodySize = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

type ListPageResp[T any] struct {
	Page  []T `json:"page"`
	Total int `json:"total"`
}

type ListResp[T any] struct {
	Items []T `json:"items"`
}

type errorResp struct {
	Error     string `json:"error"`
	ItemID    int64  `json:"item_id,omitempty"`
	Requested int    `json:"requested,omitempty"`
	Available *int   `json:"available,omitempty"`
}

// CallerHandlerFunc is a handler that needs an authenticated caller.
type CallerHandlerFunc func(w http.ResponseWriter, r *http.Request, caller model.Caller)

func authenticated(fn CallerHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := identity.CallerFrom(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorResp{Error: identity.ErrUnauthenticated.Error()})
			return
		}

		fn(w, r, caller)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("can't encode response", slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, err error) {
	var shortfall *model.ShortfallError
	if errors.As(err, &shortfall) {
		available := shortfall.Available
		writeJSON(w, http.StatusConflict, errorResp{
			Error:     err.Error(),
			ItemID:    shortfall.ItemID,
			Requested: shortfall.Requested,
			Available: &available,
		})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrInsufficientAvailability), errors.Is(err, model.ErrInsufficientStock):
		status = http.StatusConflict
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrLimitExceeded):
		status = http.StatusTooManyRequests
	case errors.Is(err, service.ErrTryAgain), errors.Is(err, model.ErrConflict):
		status = http.StatusServiceUnavailable
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request failed", slog.Any("error", err))
		msg = http.StatusText(status)
	}

	writeJSON(w, status, errorResp{Error: msg})
}

// decode reads a JSON body into dst and runs struct validation on it.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodySize))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return model.Validationf("can't decode body: %v", err)
	}

	if err := validate.Struct(dst); err != nil {
		return model.Validationf("%v", err)
	}

	return nil
}

func pathInt64(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || v < 1 {
		return 0, model.Validationf("invalid %s %q", name, r.PathValue(name))
	}
	return v, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, model.Validationf("can't parse %s: %v", name, err)
	}
	return v, nil
}

func queryRange(r *http.Request) (model.DateRange, error) {
	q := r.URL.Query()
	if q.Get("start") == "" || q.Get("end") == "" {
		return model.DateRange{}, model.Validationf("start and end query parameters are required")
	}
	return model.ParseDateRange(q.Get("start"), q.Get("end"))
}

type statusReq struct {
	Status string `json:"status" validate:"required,oneof=requested approved ongoing returned rejected"`
}

func (s statusReq) parse() (model.Status, error) {
	st, err := model.ParseStatus(s.Status)
	if err != nil {
		return "", fmt.Errorf("can't parse status: %w", err)
	}
	return st, nil
}
