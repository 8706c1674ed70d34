package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tgggt66uhgg/stk-push/internal/domain"
	"github.com/tgggt66uhgg/stk-push/internal/events"
	"github.com/tgggt66uhgg/stk-push/internal/provider"
	"github.com/tgggt66uhgg/stk-push/internal/repository"

	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu        sync.Mutex
	initiate  func(phone string, amount int64) (*provider.InitiateResponse, error)
	calls     int
	lastPhone string
	lastAmt   int64
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) Initiate(ctx context.Context, phone string, amount int64) (*provider.InitiateResponse, error) {
	g.mu.Lock()
	g.calls++
	g.lastPhone, g.lastAmt = phone, amount
	fn := g.initiate
	g.mu.Unlock()
	return fn(phone, amount)
}

func (g *fakeGateway) QueryStatus(ctx context.Context, transactionID string) (*domain.GatewayEvent, error) {
	return &domain.GatewayEvent{Status: "pending"}, nil
}

type fakeWatcher struct {
	mu      sync.Mutex
	watched map[string]string
}

func (w *fakeWatcher) Watch(reference, transactionID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watched == nil {
		w.watched = make(map[string]string)
	}
	w.watched[reference] = transactionID
	return true
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.ReceiptEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, ev events.ReceiptEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) ofType(typ events.EventType) []events.ReceiptEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.ReceiptEvent
	for _, ev := range p.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func seedReceipt(t *testing.T, repo repository.ReceiptRepository, ref, txID string, status domain.ReceiptStatus, ts time.Time) *domain.Receipt {
	t.Helper()
	r := &domain.Receipt{
		Reference:     ref,
		TransactionID: txID,
		FeeAmount:     500,
		LoanAmount:    domain.DefaultLoanAmount,
		Phone:         "254712345678",
		CustomerName:  domain.CustomerNamePlaceholder,
		Status:        status,
		StatusNote:    domain.AwaitingConfirmationNote("254712345678"),
		Timestamp:     ts,
	}
	require.NoError(t, repo.Create(context.Background(), r))
	return r
}

func mustGet(t *testing.T, repo repository.ReceiptRepository, ref string) *domain.Receipt {
	t.Helper()
	r, err := repo.GetByReference(context.Background(), ref)
	require.NoError(t, err)
	return r
}
