package vend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"topup-system/internal/status"
	"topup-system/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider is a scripted vending provider backend.
type fakeProvider struct {
	mux *http.ServeMux

	authCalls     int
	validateCalls int
	executeCalls  int

	// tokens issued in order of auth calls
	tokens []string
	// status codes answered per validate call, in order; after the script is
	// exhausted the last entry repeats
	validateScript []int

	lastExecuteBody map[string]any
}

func newFakeProvider() *fakeProvider {
	f := &fakeProvider{
		mux:            http.NewServeMux(),
		tokens:         []string{"token-1", "token-2", "token-3"},
		validateScript: []int{http.StatusOK},
	}

	f.mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		token := f.tokens[clampIdx(f.authCalls, len(f.tokens))]
		f.authCalls++
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"accessToken": token},
		})
	})

	f.mux.HandleFunc("/vend/validate", func(w http.ResponseWriter, r *http.Request) {
		code := f.validateScript[clampIdx(f.validateCalls, len(f.validateScript))]
		f.validateCalls++
		if code != http.StatusOK {
			w.WriteHeader(code)
			w.Write([]byte(`{"status":"FAILED","message":"invalid account"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"trxId":                 "trx-777",
				"deliveryMethods":       []map[string]any{{"id": "sms"}, {"id": "print"}},
				"deliverTo":             "0781049931",
				"callback":              "https://provider.example/cb",
				"customerAccountNumber": "John Doe",
				"pdtName":               "MTN Airtime",
				"vendMax":               11500,
				"extraInfo":             map[string]any{"tin": "102345678"},
			},
		})
	})

	f.mux.HandleFunc("/vend/execute", func(w http.ResponseWriter, r *http.Request) {
		f.executeCalls++
		json.NewDecoder(r.Body).Decode(&f.lastExecuteBody)
		json.NewEncoder(w).Encode(map[string]any{
			"status":  "OK",
			"message": "delivered",
			"data":    map[string]any{"token": "1234-5678"},
		})
	})

	return f
}

func clampIdx(i, n int) int {
	if i >= n {
		return n - 1
	}
	return i
}

func TestClient_Validate_Success(t *testing.T) {
	f := newFakeProvider()
	srv := httptest.NewServer(f.mux)
	defer srv.Close()

	client, err := New(context.Background(), &Config{BaseURL: srv.URL, APIKey: "k", APISecret: "s"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.authCalls)

	result, err := client.Validate(context.Background(), models.VerticalAirtime, "0781049931")
	require.NoError(t, err)

	assert.Equal(t, "trx-777", result.TrxID)
	assert.Equal(t, "sms", result.DeliveryMethod, "first delivery method wins")
	assert.Equal(t, "0781049931", result.DeliverTo)
	assert.Equal(t, "https://provider.example/cb", result.Callback)
	assert.Equal(t, "John Doe", result.CustomerName)
	assert.Equal(t, "MTN Airtime", result.ProductName)
	assert.True(t, result.VendMax.Equal(decimal.NewFromInt(11500)))
	assert.Equal(t, "102345678", result.Extra["tin"])
}

func TestClient_Validate_NoDeliveryMethods(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"accessToken": "t"}})
	})
	mux.HandleFunc("/vend/validate", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"trxId": "trx-1"}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := New(context.Background(), &Config{BaseURL: srv.URL})
	require.NoError(t, err)

	result, err := client.Validate(context.Background(), models.VerticalElectricity, "54111-222")
	require.NoError(t, err)
	assert.Equal(t, "", result.DeliveryMethod)
}

func TestClient_Unauthorized_RefreshesOnceAndRetries(t *testing.T) {
	f := newFakeProvider()
	// first validate answers 401, the retry succeeds
	f.validateScript = []int{http.StatusUnauthorized, http.StatusOK}
	srv := httptest.NewServer(f.mux)
	defer srv.Close()

	client, err := New(context.Background(), &Config{BaseURL: srv.URL})
	require.NoError(t, err)

	result, err := client.Validate(context.Background(), models.VerticalAirtime, "0781049931")
	require.NoError(t, err)
	assert.Equal(t, "trx-777", result.TrxID)

	assert.Equal(t, 2, f.authCalls, "initial connect plus one refresh")
	assert.Equal(t, 2, f.validateCalls, "original call plus one retry")
	assert.Equal(t, "token-2", client.getAccessToken())
}

func TestClient_Unauthorized_Twice_SurfacesVendError(t *testing.T) {
	f := newFakeProvider()
	f.validateScript = []int{http.StatusUnauthorized, http.StatusUnauthorized}
	srv := httptest.NewServer(f.mux)
	defer srv.Close()

	client, err := New(context.Background(), &Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Validate(context.Background(), models.VerticalAirtime, "0781049931")
	require.Error(t, err)

	var vendErr *status.VendError
	require.ErrorAs(t, err, &vendErr)
	assert.Equal(t, http.StatusUnauthorized, vendErr.StatusCode)

	// never loops: one refresh, one retry, then give up
	assert.Equal(t, 2, f.authCalls)
	assert.Equal(t, 2, f.validateCalls)
}

func TestClient_ProviderRejection_CarriesStatusAndBody(t *testing.T) {
	f := newFakeProvider()
	f.validateScript = []int{http.StatusUnprocessableEntity}
	srv := httptest.NewServer(f.mux)
	defer srv.Close()

	client, err := New(context.Background(), &Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Validate(context.Background(), models.VerticalPayTV, "smartcard-1")
	var vendErr *status.VendError
	require.ErrorAs(t, err, &vendErr)
	assert.Equal(t, http.StatusUnprocessableEntity, vendErr.StatusCode)
	assert.Contains(t, vendErr.Body, "invalid account")
	assert.Equal(t, "validate", vendErr.Op)
}

func TestClient_AuthFailure_SurfacesAuthError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("bad credentials"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, err := New(context.Background(), &Config{BaseURL: srv.URL, APIKey: "bad", APISecret: "bad"})
	var authErr *status.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusForbidden, authErr.StatusCode)
	assert.Contains(t, authErr.Body, "bad credentials")
}

func TestClient_Execute_ThreadsStoredFieldsVerbatim(t *testing.T) {
	f := newFakeProvider()
	srv := httptest.NewServer(f.mux)
	defer srv.Close()

	client, err := New(context.Background(), &Config{BaseURL: srv.URL})
	require.NoError(t, err)

	result, err := client.Execute(context.Background(), &models.VendExecuteRequest{
		TrxID:                 "trx-777",
		CustomerAccountNumber: "0781049931",
		Amount:                decimal.RequireFromString("10"),
		Vertical:              models.VerticalAirtime,
		DeliveryMethod:        "sms",
		DeliverTo:             "0781049931",
		Callback:              "https://provider.example/cb",
	})
	require.NoError(t, err)
	assert.Equal(t, "OK", result.Status)
	assert.Equal(t, "1234-5678", result.Data["token"])

	// wire format matches the provider contract
	assert.Equal(t, "trx-777", f.lastExecuteBody["trxId"])
	assert.Equal(t, "0781049931", f.lastExecuteBody["customerAccountNumber"])
	assert.Equal(t, float64(10), f.lastExecuteBody["amount"])
	assert.Equal(t, "airtime", f.lastExecuteBody["verticalId"])
	assert.Equal(t, "sms", f.lastExecuteBody["deliveryMethodId"])
	assert.Equal(t, "https://provider.example/cb", f.lastExecuteBody["callBack"])
}
