package orderbook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostNewOrder(t *testing.T) {
	var received NewOrder
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/orderbook/orders", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	o := OrderToClient(&Order{})
	o.TraderPubkey = "02a1b2c3"

	err := client.PostNewOrder(context.Background(), o)
	require.NoError(t, err)
	assert.Equal(t, "02a1b2c3", received.TraderPubkey)
}

func TestPostNewOrder_RejectedByCoordinator(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "order expired", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(server.URL)

	err := client.PostNewOrder(context.Background(), OrderToClient(&Order{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}
