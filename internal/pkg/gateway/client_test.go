package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/booking_go_server/config"
)

func newTestClient(serverURL string) *Client {
	return NewClient(&config.GatewayConfig{
		BaseURL:     serverURL,
		AccessToken: "test-token",
	})
}

func TestClient_CreatePreference(t *testing.T) {
	var gotPayload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/checkout/preferences", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{
			"id":         "pref-1",
			"init_point": "https://gateway.test/checkout/pref-1",
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	pref, err := client.CreatePreference(context.Background(), &PreferenceRequest{
		Title:             "订阅 basic 套餐",
		Amount:            18900,
		Currency:          "ARS",
		ExternalReference: "sub_abc",
		NotificationURL:   "https://api.example.com/api/v1/payments/webhook",
	})
	require.NoError(t, err)
	assert.Equal(t, "pref-1", pref.ID)
	assert.Equal(t, "https://gateway.test/checkout/pref-1", pref.InitPoint)

	assert.Equal(t, "sub_abc", gotPayload["external_reference"])
	items := gotPayload["items"].([]interface{})
	require.Len(t, items, 1)
	item := items[0].(map[string]interface{})
	assert.Equal(t, float64(18900), item["unit_price"])
	assert.Equal(t, "ARS", item["currency_id"])
}

func TestClient_CreatePreference_GatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"invalid currency"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.CreatePreference(context.Background(), &PreferenceRequest{Amount: 100})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestClient_GetPayment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/payments/gw-42", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":                 "gw-42",
			"status":             "approved",
			"status_detail":      "accredited",
			"external_reference": "sub_abc",
			"transaction_amount": 18900,
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	detail, err := client.GetPayment(context.Background(), "gw-42")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, detail.Status)
	assert.Equal(t, "sub_abc", detail.ExternalReference)
	assert.Equal(t, int64(18900), detail.TransactionAmount)
}

func TestClient_GetPayment_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.GetPayment(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
