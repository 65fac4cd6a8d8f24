package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/IlyushaZ/rental-store/pkg/model"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestOutcome(t *testing.T) {
	short := &model.ShortfallError{ItemID: 1, Reason: model.ErrInsufficientAvailability}

	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "insufficient_availability", Outcome(fmt.Errorf("wrapped: %w", short)))
	assert.Equal(t, "invalid", Outcome(model.Validationf("bad")))
	assert.Equal(t, "conflict", Outcome(fmt.Errorf("%w: x", model.ErrConflict)))
	assert.Equal(t, "error", Outcome(errors.New("boom")))
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "root", NormalizePath("/"))
	assert.Equal(t, "items", NormalizePath("/items/12/availability"))
	assert.Equal(t, "rentals", NormalizePath("/rentals"))
}

func TestMiddleware(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))

	before := testutil.ToFloat64(RequestTotal.WithLabelValues(http.MethodPost, "rentals", "409"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/rentals", nil))

	after := testutil.ToFloat64(RequestTotal.WithLabelValues(http.MethodPost, "rentals", "409"))
	assert.Equal(t, before+1, after)
}
