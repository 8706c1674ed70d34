// internal/domain/merge.go
package domain

import "time"

// MergeResult describes what applying an event did to a receipt.
type MergeResult struct {
	Receipt      *Receipt
	From         ReceiptStatus
	To           ReceiptStatus
	Transitioned bool
	Changed      bool
}

// Merge folds a status event into the current receipt and returns the next
// version. The input receipt is never modified.
//
// Only a pending receipt changes status. A receipt that already reached the
// outcome the event reports may still pick up a missing settlement code or
// customer name; any other combination is a no-op.
func Merge(current *Receipt, ev *GatewayEvent, now time.Time) MergeResult {
	next := current.Clone()
	res := MergeResult{From: current.Status, To: current.Status}
	confirm := ev.IsConfirmation()
	target := StatusCancelled
	if confirm {
		target = StatusProcessing
	}

	switch {
	case CanTransition(current.Status, target) && confirm:
		applyConfirmation(next, ev, now)
	case CanTransition(current.Status, target):
		applyFailure(next, ev, now)
	case current.Status == target,
		confirm && current.Status == StatusLoanReleased:
		fillOpportunistic(next, ev)
	}

	res.Receipt = next
	res.To = next.Status
	res.Transitioned = res.From != res.To
	res.Changed = *next != *current
	return res
}

func applyConfirmation(r *Receipt, ev *GatewayEvent, now time.Time) {
	r.Status = StatusProcessing
	if r.TransactionID == "" && len(ev.TransactionIDs) > 0 {
		r.TransactionID = ev.TransactionIDs[0]
	}
	if ev.SettlementCode != "" {
		r.SettlementCode = ev.SettlementCode
	}
	if ev.Amount != nil {
		r.FeeAmount = *ev.Amount
	}
	if phone, ok := NormalizePhone(ev.Phone); ok {
		r.Phone = phone
	}
	fillName(r, ev)
	r.StatusNote = ConfirmationNote(r.Reference)
	r.Timestamp = advance(r.Timestamp, ev.CompletedAt, now)
}

func applyFailure(r *Receipt, ev *GatewayEvent, now time.Time) {
	r.Status = StatusCancelled
	if ev.SettlementCode != "" {
		r.SettlementCode = ev.SettlementCode
	}
	if ev.Amount != nil {
		r.FeeAmount = *ev.Amount
	}
	if phone, ok := NormalizePhone(ev.Phone); ok {
		r.Phone = phone
	}
	fillName(r, ev)
	reason := ev.FailureReason
	if reason == "" {
		reason = ev.ResultDesc
	}
	r.StatusNote = FailureNote(ev.ResultCode, reason)
	r.Timestamp = advance(r.Timestamp, ev.FailedAt, now)
}

func fillOpportunistic(r *Receipt, ev *GatewayEvent) {
	if r.SettlementCode == "" && ev.SettlementCode != "" {
		r.SettlementCode = ev.SettlementCode
	}
	if r.CustomerName == "" || r.CustomerName == CustomerNamePlaceholder {
		fillName(r, ev)
	}
}

func fillName(r *Receipt, ev *GatewayEvent) {
	if ev.CustomerName != "" {
		r.CustomerName = ev.CustomerName
	}
	if r.CustomerName == "" {
		r.CustomerName = CustomerNamePlaceholder
	}
}

// advance picks the reported time, or now, and never moves the stamp backward.
func advance(prev time.Time, reported *time.Time, now time.Time) time.Time {
	next := now.UTC()
	if reported != nil {
		next = *reported
	}
	if next.Before(prev) {
		return prev
	}
	return next
}
