// internal/domain/event.go
package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// GatewayEvent is the canonical form of a status signal, whether it came from a
// status poll or from a webhook. Absent fields stay at their zero value or nil.
type GatewayEvent struct {
	Status         string
	Success        *bool
	ResultCode     *int
	ResultDesc     string
	FailureReason  string
	SettlementCode string
	Amount         *int64
	Phone          string
	CustomerName   string

	// Reference is a direct pointer to a receipt when the sender echoes ours.
	Reference string
	// TransactionIDs are gateway identifiers usable for a transaction id lookup.
	TransactionIDs []string

	CompletedAt *time.Time
	FailedAt    *time.Time
}

// ParseEvent decodes a raw JSON payload and normalizes it.
func ParseEvent(body []byte) (*GatewayEvent, error) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return NormalizeEvent(payload), nil
}

// NormalizeEvent maps the payload shapes seen in the wild onto one structure:
// flat, wrapped in "data", with a nested "result" object, or the Daraja
// Body.stkCallback envelope.
func NormalizeEvent(payload map[string]any) *GatewayEvent {
	if payload == nil {
		payload = map[string]any{}
	}
	data := payload
	if nested, ok := payload["data"].(map[string]any); ok {
		data = nested
	}
	result, _ := data["result"].(map[string]any)
	stk := stkCallback(payload)
	items := callbackItems(stk)

	ev := &GatewayEvent{
		Status: strings.ToLower(strings.TrimSpace(firstString(
			field(data, "status"), field(payload, "status"),
		))),
		ResultDesc: firstString(
			field(result, "ResultDesc"), field(data, "ResultDesc"), field(stk, "ResultDesc"),
		),
		FailureReason: firstString(field(data, "failure_reason"), field(payload, "failure_reason")),
		SettlementCode: firstString(
			field(data, "mpesa_receipt_number"), field(data, "mpesa_transaction_id"),
			field(result, "MpesaReceiptNumber"), field(items, "MpesaReceiptNumber"),
		),
		Phone: firstString(
			field(data, "mobile_number"), field(result, "Phone"), field(items, "PhoneNumber"),
		),
		Reference: firstString(
			field(payload, "external_reference"), field(payload, "reference"),
			field(data, "external_reference"),
		),
	}

	ev.Success = firstBool(field(payload, "success"), field(data, "success"))
	ev.ResultCode = firstInt(
		field(result, "ResultCode"), field(data, "result_code"), field(data, "ResultCode"),
		field(stk, "ResultCode"), field(payload, "result_code"),
	)
	ev.Amount = firstAmount(field(data, "amount"), field(result, "Amount"), field(items, "Amount"))
	ev.CustomerName = customerName(data, result)
	ev.TransactionIDs = uniqueStrings(
		field(payload, "transaction_reference"), field(data, "transaction_reference"),
		field(data, "checkout_request_id"), field(payload, "transaction_id"),
		field(data, "transaction_id"), field(stk, "CheckoutRequestID"),
		field(payload, "CheckoutRequestID"),
	)
	ev.CompletedAt = firstTime(field(data, "paid_at"), field(data, "completed_at"))
	ev.FailedAt = firstTime(field(data, "failed_at"))
	return ev
}

// IsConfirmation reports whether the event confirms the payment.
func (e *GatewayEvent) IsConfirmation() bool {
	if e.Status == "completed" || e.Status == "processing" {
		return true
	}
	if e.ResultCode != nil && *e.ResultCode == ResultCodeSuccess {
		return true
	}
	return false
}

// failureStatuses are the status words that settle a payment as failed
// without a result code.
var failureStatuses = map[string]bool{
	"failed":    true,
	"failure":   true,
	"cancelled": true,
	"canceled":  true,
	"rejected":  true,
	"declined":  true,
	"expired":   true,
	"timeout":   true,
	"timed_out": true,
}

// IsDecisive reports whether the event carries an outcome: a result code, a
// confirming status or a known failure status. Any other status is treated
// as still in progress and leaves the receipt untouched.
func (e *GatewayEvent) IsDecisive() bool {
	if e.ResultCode != nil {
		return true
	}
	return e.IsConfirmation() || failureStatuses[e.Status]
}

func stkCallback(payload map[string]any) map[string]any {
	body, ok := payload["Body"].(map[string]any)
	if !ok {
		return nil
	}
	stk, _ := body["stkCallback"].(map[string]any)
	return stk
}

// callbackItems flattens CallbackMetadata.Item [{Name, Value}] into a map.
func callbackItems(stk map[string]any) map[string]any {
	meta, ok := stk["CallbackMetadata"].(map[string]any)
	if !ok {
		return nil
	}
	list, ok := meta["Item"].([]any)
	if !ok {
		return nil
	}
	out := make(map[string]any, len(list))
	for _, raw := range list {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := item["Name"].(string)
		if name != "" {
			out[name] = item["Value"]
		}
	}
	return out
}

func customerName(data, result map[string]any) string {
	if name := firstString(field(data, "name"), field(result, "Name")); name != "" {
		return name
	}
	var parts []string
	for _, key := range []string{"FirstName", "MiddleName", "LastName"} {
		if p := asString(field(result, key)); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

func field(m map[string]any, key string) any {
	if m == nil {
		return nil
	}
	return m[key]
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	}
	return ""
}

func firstString(values ...any) string {
	for _, v := range values {
		if s := asString(v); s != "" {
			return s
		}
	}
	return ""
}

func uniqueStrings(values ...any) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, v := range values {
		s := asString(v)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func firstBool(values ...any) *bool {
	for _, v := range values {
		if b, ok := v.(bool); ok {
			return &b
		}
	}
	return nil
}

func firstInt(values ...any) *int {
	for _, v := range values {
		switch t := v.(type) {
		case float64:
			n := int(t)
			return &n
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
				return &n
			}
		}
	}
	return nil
}

func firstAmount(values ...any) *int64 {
	for _, v := range values {
		var d decimal.Decimal
		switch t := v.(type) {
		case float64:
			d = decimal.NewFromFloat(t)
		case string:
			parsed, err := decimal.NewFromString(strings.TrimSpace(t))
			if err != nil {
				continue
			}
			d = parsed
		default:
			continue
		}
		n := d.Round(0).IntPart()
		if n < 1 {
			continue
		}
		return &n
	}
	return nil
}

func firstTime(values ...any) *time.Time {
	for _, v := range values {
		s := asString(v)
		if s == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
