package paypal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"topup-system/internal/status"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mux *http.ServeMux

	tokenCalls   int
	createCalls  int
	executeCalls int

	lastCreateBody  map[string]any
	executeState    string
	executeHTTPCode int
}

func newFakeGateway() *fakeGateway {
	f := &fakeGateway{
		mux:             http.NewServeMux(),
		executeState:    "approved",
		executeHTTPCode: http.StatusOK,
	}

	f.mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls++
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"access_token": "pp-token", "token_type": "Bearer"})
	})

	f.mux.HandleFunc("/v1/payments/payment", func(w http.ResponseWriter, r *http.Request) {
		f.createCalls++
		json.NewDecoder(r.Body).Decode(&f.lastCreateBody)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"id": "PAY-123",
			"links": []map[string]any{
				{"href": "https://gateway.example/self", "rel": "self", "method": "GET"},
				{"href": "https://gateway.example/approve?token=abc", "rel": "approval_url", "method": "REDIRECT"},
			},
		})
	})

	f.mux.HandleFunc("/v1/payments/payment/PAY-123/execute", func(w http.ResponseWriter, r *http.Request) {
		f.executeCalls++
		if f.executeHTTPCode != http.StatusOK {
			w.WriteHeader(f.executeHTTPCode)
			w.Write([]byte(`{"name":"PAYMENT_NOT_APPROVED_FOR_EXECUTION","message":"Payer has not approved payment"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"id": "PAY-123", "state": f.executeState})
	})

	return f
}

func newTestClient(t *testing.T, f *fakeGateway) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(f.mux)
	t.Cleanup(srv.Close)

	client, err := New(context.Background(), &Config{
		BaseURL:      srv.URL,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
	})
	require.NoError(t, err)
	return client, srv
}

func TestClient_CreatePayment_ReturnsApprovalURL(t *testing.T) {
	f := newFakeGateway()
	client, _ := newTestClient(t, f)

	redirect, err := client.CreatePayment(context.Background(),
		decimal.RequireFromString("12.19"), "0781049931",
		"http://localhost:8090/api/topup/execute?txn=TX1",
		"http://localhost:8090/api/topup/cancel?txn=TX1")
	require.NoError(t, err)
	assert.Equal(t, "https://gateway.example/approve?token=abc", redirect)

	// the charge is the quoted total in the fixed currency
	txns := f.lastCreateBody["transactions"].([]any)
	amount := txns[0].(map[string]any)["amount"].(map[string]any)
	assert.Equal(t, "12.19", amount["total"])
	assert.Equal(t, "USD", amount["currency"])

	urls := f.lastCreateBody["redirect_urls"].(map[string]any)
	assert.Equal(t, "http://localhost:8090/api/topup/execute?txn=TX1", urls["return_url"])
}

func TestClient_ExecutePayment_Approved(t *testing.T) {
	f := newFakeGateway()
	client, _ := newTestClient(t, f)

	ok, msg := client.ExecutePayment(context.Background(), "PAY-123", "PAYER-9")
	assert.True(t, ok)
	assert.Empty(t, msg)
}

func TestClient_ExecutePayment_Declined(t *testing.T) {
	f := newFakeGateway()
	f.executeHTTPCode = http.StatusBadRequest
	client, _ := newTestClient(t, f)

	ok, msg := client.ExecutePayment(context.Background(), "PAY-123", "PAYER-9")
	assert.False(t, ok)
	assert.Contains(t, msg, "PAYMENT_NOT_APPROVED_FOR_EXECUTION")
}

func TestClient_ExecutePayment_NotApprovedState(t *testing.T) {
	f := newFakeGateway()
	f.executeState = "failed"
	client, _ := newTestClient(t, f)

	ok, msg := client.ExecutePayment(context.Background(), "PAY-123", "PAYER-9")
	assert.False(t, ok)
	assert.Contains(t, msg, "state=failed")
}

func TestClient_BadCredentials(t *testing.T) {
	f := newFakeGateway()
	srv := httptest.NewServer(f.mux)
	defer srv.Close()

	_, err := New(context.Background(), &Config{
		BaseURL:      srv.URL,
		ClientID:     "wrong",
		ClientSecret: "wrong",
	})
	var authErr *status.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
}

func TestClient_CreatePayment_NoApprovalLink(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"access_token": "t"})
	})
	mux.HandleFunc("/v1/payments/payment", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"id": "PAY-1", "links": []map[string]any{}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := New(context.Background(), &Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.CreatePayment(context.Background(), decimal.NewFromInt(5), "acct", "r", "c")
	var payErr *status.PaymentError
	require.ErrorAs(t, err, &payErr)
	assert.Equal(t, "create", payErr.Op)
}
