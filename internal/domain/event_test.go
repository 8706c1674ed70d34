package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent_FlatPayload(t *testing.T) {
	ev, err := ParseEvent([]byte(`{
		"transaction_reference": "TX-1",
		"status": "Completed",
		"mpesa_receipt_number": "ABC123",
		"amount": "500",
		"mobile_number": "0712345678"
	}`))
	require.NoError(t, err)

	assert.Equal(t, "completed", ev.Status)
	assert.Equal(t, "ABC123", ev.SettlementCode)
	require.NotNil(t, ev.Amount)
	assert.EqualValues(t, 500, *ev.Amount)
	assert.Equal(t, "0712345678", ev.Phone)
	assert.Equal(t, []string{"TX-1"}, ev.TransactionIDs)
	assert.Empty(t, ev.Reference)
	assert.True(t, ev.IsConfirmation())
	assert.True(t, ev.IsDecisive())
}

func TestParseEvent_NestedDataWithResult(t *testing.T) {
	ev, err := ParseEvent([]byte(`{
		"success": true,
		"external_reference": "ORDER-1",
		"data": {
			"transaction_reference": "TX-2",
			"checkout_request_id": "ws_CO_1",
			"status": "failed",
			"failed_at": "2025-01-02T03:04:05Z",
			"result": {
				"ResultCode": 1032,
				"ResultDesc": "Request cancelled by user",
				"FirstName": "Jane",
				"LastName": "Wanjiru"
			}
		}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "ORDER-1", ev.Reference)
	assert.Equal(t, []string{"TX-2", "ws_CO_1"}, ev.TransactionIDs)
	require.NotNil(t, ev.ResultCode)
	assert.Equal(t, 1032, *ev.ResultCode)
	assert.Equal(t, "Request cancelled by user", ev.ResultDesc)
	assert.Equal(t, "Jane Wanjiru", ev.CustomerName)
	require.NotNil(t, ev.Success)
	assert.True(t, *ev.Success)
	require.NotNil(t, ev.FailedAt)
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), *ev.FailedAt)
	assert.False(t, ev.IsConfirmation())
}

func TestParseEvent_DarajaCallback(t *testing.T) {
	ev, err := ParseEvent([]byte(`{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": "29115-34620561-1",
				"CheckoutRequestID": "ws_CO_191220191020363925",
				"ResultCode": 0,
				"ResultDesc": "The service request is processed successfully.",
				"CallbackMetadata": {
					"Item": [
						{"Name": "Amount", "Value": 1.00},
						{"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
						{"Name": "TransactionDate", "Value": 20191219102115},
						{"Name": "PhoneNumber", "Value": 254708374149}
					]
				}
			}
		}
	}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"ws_CO_191220191020363925"}, ev.TransactionIDs)
	require.NotNil(t, ev.ResultCode)
	assert.Equal(t, 0, *ev.ResultCode)
	assert.Equal(t, "NLJ7RT61SV", ev.SettlementCode)
	assert.Equal(t, "254708374149", ev.Phone)
	require.NotNil(t, ev.Amount)
	assert.EqualValues(t, 1, *ev.Amount)
	assert.True(t, ev.IsConfirmation())
}

func TestParseEvent_ResultCodeZeroConfirms(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"result_code": 0}`))
	require.NoError(t, err)
	assert.True(t, ev.IsConfirmation())
	assert.True(t, ev.IsDecisive())
}

func TestParseEvent_InvalidJSON(t *testing.T) {
	_, err := ParseEvent([]byte(`{not json`))
	assert.Error(t, err)
}

func TestGatewayEvent_IsDecisive(t *testing.T) {
	code := 1037
	tests := []struct {
		name string
		ev   GatewayEvent
		want bool
	}{
		{"empty status", GatewayEvent{}, false},
		{"pending", GatewayEvent{Status: "pending"}, false},
		{"queued", GatewayEvent{Status: "queued"}, false},
		{"failed", GatewayEvent{Status: "failed"}, true},
		{"cancelled", GatewayEvent{Status: "cancelled"}, true},
		{"canceled", GatewayEvent{Status: "canceled"}, true},
		{"expired", GatewayEvent{Status: "expired"}, true},
		{"completed", GatewayEvent{Status: "completed"}, true},
		{"in progress", GatewayEvent{Status: "in_progress"}, false},
		{"submitted", GatewayEvent{Status: "submitted"}, false},
		{"sent", GatewayEvent{Status: "sent"}, false},
		{"success flag alone", GatewayEvent{Success: boolPtr(false)}, false},
		{"pending with code", GatewayEvent{Status: "pending", ResultCode: &code}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ev.IsDecisive())
		})
	}
}

func boolPtr(b bool) *bool { return &b }
