package paynecta

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tgggt66uhgg/stk-push/config"
	"github.com/tgggt66uhgg/stk-push/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *PaynectaProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewPaynectaProvider(config.GatewayConfig{
		BaseURL:         srv.URL,
		APIKey:          "key-123",
		Email:           "ops@example.com",
		Code:            "PNT_1",
		InitiateTimeout: time.Second,
		StatusTimeout:   time.Second,
	}, zap.NewNop())
}

func TestInitiate_Success(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, initializePath, r.URL.Path)
		assert.Equal(t, "key-123", r.Header.Get("X-API-Key"))
		assert.Equal(t, "ops@example.com", r.Header.Get("X-User-Email"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "PNT_1", body["code"])
		assert.Equal(t, "254712345678", body["mobile_number"])
		assert.EqualValues(t, 500, body["amount"])

		w.Write([]byte(`{"success":true,"message":"sent","data":{"transaction_reference":"TX-9"}}`))
	})

	resp, err := p.Initiate(context.Background(), "254712345678", 500)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "TX-9", resp.TransactionID)
}

func TestInitiate_Rejected(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"message":"Invalid mobile number"}`))
	})

	resp, err := p.Initiate(context.Background(), "254712345678", 500)
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Invalid mobile number", resp.Message)
	assert.Empty(t, resp.TransactionID)
}

func TestInitiate_TransportFailures(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"message":"boom"}`))
			},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`<html>`))
			},
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(3 * time.Second):
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, tt.handler)
			_, err := p.Initiate(context.Background(), "254712345678", 500)
			require.Error(t, err)

			var te *domain.TransportError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, "initialize", te.Op)
			assert.Equal(t, tt.wantStatus, te.StatusCode)
		})
	}
}

func TestQueryStatus(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, statusPath, r.URL.Path)
		assert.Equal(t, "TX 9", r.URL.Query().Get("transaction_reference"))
		w.Write([]byte(`{"success":true,"data":{"status":"COMPLETED","mpesa_receipt_number":"ABC123","amount":500}}`))
	})

	ev, err := p.QueryStatus(context.Background(), "TX 9")
	require.NoError(t, err)
	assert.Equal(t, "completed", ev.Status)
	assert.Equal(t, "ABC123", ev.SettlementCode)
	assert.Equal(t, []string{"TX 9"}, ev.TransactionIDs)
	assert.True(t, ev.IsConfirmation())
}

func TestQueryStatus_NotFound(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := p.QueryStatus(context.Background(), "TX-missing")
	var te *domain.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusNotFound, te.StatusCode)
}
