package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"topup-system/internal/status"

	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequestEvent(method, target string) *core.RequestEvent {
	e := new(core.RequestEvent)
	e.Request = httptest.NewRequest(method, target, nil)
	e.Response = httptest.NewRecorder()
	return e
}

func apiStatus(t *testing.T, err error) int {
	t.Helper()
	var apiErr *router.ApiError
	require.ErrorAs(t, err, &apiErr)
	return apiErr.Status
}

func TestTopupErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unknown transaction", status.ErrTransactionNotFound, http.StatusNotFound},
		{"duplicate initiate", status.ErrDuplicateInitiate, http.StatusConflict},
		{"provider unavailable", status.ErrProviderUnavailable, http.StatusServiceUnavailable},
		{"vend rejection", &status.VendError{Op: "validate", StatusCode: 422, Body: "bad account"}, http.StatusBadRequest},
		{"payment declined", &status.PaymentError{Op: "execute", Message: "payment was not approved"}, http.StatusBadRequest},
		{"provider auth failure", &status.AuthError{StatusCode: 401}, http.StatusBadGateway},
		{"anything else", errors.New("boom"), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, apiStatus(t, topupError(tt.err)))
		})
	}
}

func TestTopupErrorMapping_WrappedSentinel(t *testing.T) {
	wrapped := errors.Join(errors.New("take pending"), status.ErrTransactionNotFound)
	assert.Equal(t, http.StatusNotFound, apiStatus(t, topupError(wrapped)))
}

func TestTopupErrorMapping_PaymentMessageIsSurfaced(t *testing.T) {
	err := topupError(&status.PaymentError{Op: "execute", Message: "payer has not approved the payment"})

	var apiErr *router.ApiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "payer has not approved the payment", apiErr.Message)
}

func TestExecuteRequiresCallbackParams(t *testing.T) {
	h := &TopupHandler{}

	tests := []struct {
		name   string
		target string
	}{
		{"all missing", "/api/topup/execute"},
		{"missing payer", "/api/topup/execute?txn=ABC&paymentId=PAY-1"},
		{"missing payment", "/api/topup/execute?txn=ABC&PayerID=P1"},
		{"missing txn", "/api/topup/execute?paymentId=PAY-1&PayerID=P1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newRequestEvent(http.MethodGet, tt.target)
			err := h.Execute(e)
			assert.Equal(t, http.StatusBadRequest, apiStatus(t, err))
		})
	}
}

func TestCancelRequiresTransactionID(t *testing.T) {
	h := &TopupHandler{}

	e := newRequestEvent(http.MethodGet, "/api/topup/cancel")
	err := h.Cancel(e)
	assert.Equal(t, http.StatusBadRequest, apiStatus(t, err))
}
