// internal/events/events.go
package events

import (
	"context"
	"errors"
	"time"

	"github.com/tgggt66uhgg/stk-push/internal/domain"

	"github.com/google/uuid"
)

type EventType string

const (
	TypeReceiptCreated      EventType = "receipt.created"
	TypeReceiptTransitioned EventType = "receipt.transitioned"
	TypeReceiptUpdated      EventType = "receipt.updated"
)

// Source names which component produced a change.
type Source string

const (
	SourceInitiation Source = "initiation"
	SourcePoller     Source = "poller"
	SourceWebhook    Source = "webhook"
	SourceRelease    Source = "release"
)

// ReceiptEvent is published for every created receipt and every write that
// changed one.
type ReceiptEvent struct {
	EventID    string               `json:"event_id"`
	Type       EventType            `json:"type"`
	Source     Source               `json:"source"`
	Reference  string               `json:"reference"`
	From       domain.ReceiptStatus `json:"from,omitempty"`
	To         domain.ReceiptStatus `json:"to"`
	Receipt    *domain.Receipt      `json:"receipt"`
	OccurredAt time.Time            `json:"occurred_at"`
}

func NewCreated(source Source, r *domain.Receipt) ReceiptEvent {
	return ReceiptEvent{
		EventID:    uuid.NewString(),
		Type:       TypeReceiptCreated,
		Source:     source,
		Reference:  r.Reference,
		To:         r.Status,
		Receipt:    r.Clone(),
		OccurredAt: time.Now().UTC(),
	}
}

// NewChanged builds a transitioned event when the status moved and an
// updated event when only opportunistic fields changed.
func NewChanged(source Source, from domain.ReceiptStatus, r *domain.Receipt) ReceiptEvent {
	typ := TypeReceiptTransitioned
	if from == r.Status {
		typ = TypeReceiptUpdated
	}
	return ReceiptEvent{
		EventID:    uuid.NewString(),
		Type:       typ,
		Source:     source,
		Reference:  r.Reference,
		From:       from,
		To:         r.Status,
		Receipt:    r.Clone(),
		OccurredAt: time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, ev ReceiptEvent) error
}

type nopPublisher struct{}

func NewNopPublisher() Publisher { return nopPublisher{} }

func (nopPublisher) Publish(context.Context, ReceiptEvent) error { return nil }

// Fanout delivers each event to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev ReceiptEvent) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
