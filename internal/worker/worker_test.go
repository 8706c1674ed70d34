package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tgggt66uhgg/stk-push/internal/domain"
	"github.com/tgggt66uhgg/stk-push/internal/events"
	"github.com/tgggt66uhgg/stk-push/internal/provider"
	"github.com/tgggt66uhgg/stk-push/internal/repository"
	"github.com/tgggt66uhgg/stk-push/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	waitFor   = 2 * time.Second
	tickEvery = 5 * time.Millisecond
)

// scriptedGateway replays a fixed list of status answers, repeating the last one.
type scriptedGateway struct {
	mu      sync.Mutex
	answers []answer
	calls   int
}

type answer struct {
	ev  *domain.GatewayEvent
	err error
}

func (g *scriptedGateway) Name() string { return "scripted" }

func (g *scriptedGateway) Initiate(context.Context, string, int64) (*provider.InitiateResponse, error) {
	return nil, errors.New("not used")
}

func (g *scriptedGateway) QueryStatus(ctx context.Context, transactionID string) (*domain.GatewayEvent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.calls
	if i >= len(g.answers) {
		i = len(g.answers) - 1
	}
	g.calls++
	return g.answers[i].ev, g.answers[i].err
}

func (g *scriptedGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func pending() answer { return answer{ev: &domain.GatewayEvent{Status: "pending"}} }

func seed(t *testing.T, repo repository.ReceiptRepository, ref string, status domain.ReceiptStatus, ts time.Time) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &domain.Receipt{
		Reference:     ref,
		TransactionID: "TX-" + ref,
		FeeAmount:     500,
		LoanAmount:    domain.DefaultLoanAmount,
		Phone:         "254712345678",
		CustomerName:  domain.CustomerNamePlaceholder,
		Status:        status,
		Timestamp:     ts,
	}))
}

func statusOf(t *testing.T, repo repository.ReceiptRepository, ref string) domain.ReceiptStatus {
	t.Helper()
	r, err := repo.GetByReference(context.Background(), ref)
	require.NoError(t, err)
	return r.Status
}

func newPoller(t *testing.T, gw provider.Gateway, repo repository.ReceiptRepository, lifetime time.Duration) *Poller {
	t.Helper()
	p := NewPoller(gw, usecase.NewReconcileUsecase(repo, events.NewNopPublisher(), zap.NewNop()), tickEvery, lifetime, zap.NewNop())
	t.Cleanup(p.StopAll)
	return p
}

func TestPoller_StopsAfterConfirmation(t *testing.T) {
	repo := repository.NewMemoryReceiptRepository()
	seed(t, repo, "ORDER-1", domain.StatusPending, time.Now())
	gw := &scriptedGateway{answers: []answer{
		pending(),
		{err: &domain.TransportError{Op: "status", Err: errors.New("timeout")}},
		pending(),
		{ev: &domain.GatewayEvent{Status: "completed", SettlementCode: "ABC123"}},
	}}
	p := newPoller(t, gw, repo, time.Minute)

	require.True(t, p.Watch("ORDER-1", "TX-ORDER-1"))

	require.Eventually(t, func() bool { return p.Active() == 0 }, waitFor, tickEvery)
	assert.Equal(t, domain.StatusProcessing, statusOf(t, repo, "ORDER-1"))
	assert.Equal(t, 4, gw.Calls())
}

func TestPoller_StopsAfterCancellation(t *testing.T) {
	repo := repository.NewMemoryReceiptRepository()
	seed(t, repo, "ORDER-1", domain.StatusPending, time.Now())
	code := 1037
	gw := &scriptedGateway{answers: []answer{{ev: &domain.GatewayEvent{Status: "failed", ResultCode: &code}}}}
	p := newPoller(t, gw, repo, time.Minute)

	p.Watch("ORDER-1", "TX-ORDER-1")

	require.Eventually(t, func() bool { return p.Active() == 0 }, waitFor, tickEvery)
	assert.Equal(t, domain.StatusCancelled, statusOf(t, repo, "ORDER-1"))
	assert.Equal(t, 1, gw.Calls())
}

func TestPoller_KeepsPollingThroughUnknownProgressStatus(t *testing.T) {
	repo := repository.NewMemoryReceiptRepository()
	seed(t, repo, "ORDER-1", domain.StatusPending, time.Now())
	gw := &scriptedGateway{answers: []answer{
		{ev: &domain.GatewayEvent{Status: "in_progress"}},
		{ev: &domain.GatewayEvent{Status: "submitted"}},
		{ev: &domain.GatewayEvent{Status: "completed", SettlementCode: "ABC123"}},
	}}
	p := newPoller(t, gw, repo, time.Minute)

	p.Watch("ORDER-1", "TX-ORDER-1")

	require.Eventually(t, func() bool { return p.Active() == 0 }, waitFor, tickEvery)
	assert.Equal(t, domain.StatusProcessing, statusOf(t, repo, "ORDER-1"))
	assert.Equal(t, 3, gw.Calls())
}

func TestPoller_DuplicateWatchIsNoop(t *testing.T) {
	repo := repository.NewMemoryReceiptRepository()
	seed(t, repo, "ORDER-1", domain.StatusPending, time.Now())
	p := newPoller(t, &scriptedGateway{answers: []answer{pending()}}, repo, time.Minute)

	assert.True(t, p.Watch("ORDER-1", "TX-ORDER-1"))
	assert.False(t, p.Watch("ORDER-1", "TX-ORDER-1"))
	assert.Equal(t, 1, p.Active())
}

func TestPoller_StopsWhenReceiptVanishes(t *testing.T) {
	repo := repository.NewMemoryReceiptRepository()
	gw := &scriptedGateway{answers: []answer{{ev: &domain.GatewayEvent{Status: "completed"}}}}
	p := newPoller(t, gw, repo, time.Minute)

	p.Watch("ORDER-GONE", "TX-GONE")

	require.Eventually(t, func() bool { return p.Active() == 0 }, waitFor, tickEvery)
	assert.Equal(t, 1, gw.Calls())
}

func TestPoller_StopsWhenSettledElsewhere(t *testing.T) {
	repo := repository.NewMemoryReceiptRepository()
	seed(t, repo, "ORDER-1", domain.StatusPending, time.Now())
	gw := &scriptedGateway{answers: []answer{pending()}}
	p := newPoller(t, gw, repo, time.Minute)

	p.Watch("ORDER-1", "TX-ORDER-1")
	_, err := repo.Update(context.Background(), "ORDER-1", func(r *domain.Receipt) (*domain.Receipt, error) {
		r.Status = domain.StatusProcessing
		return r, nil
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return p.Active() == 0 }, waitFor, tickEvery)
	assert.Equal(t, domain.StatusProcessing, statusOf(t, repo, "ORDER-1"))
}

func TestPoller_GivesUpAfterMaxLifetime(t *testing.T) {
	repo := repository.NewMemoryReceiptRepository()
	seed(t, repo, "ORDER-1", domain.StatusPending, time.Now())
	p := newPoller(t, &scriptedGateway{answers: []answer{pending()}}, repo, 50*time.Millisecond)

	p.Watch("ORDER-1", "TX-ORDER-1")

	require.Eventually(t, func() bool { return p.Active() == 0 }, waitFor, tickEvery)
	assert.Equal(t, domain.StatusPending, statusOf(t, repo, "ORDER-1"))
}

func TestPoller_StopAll(t *testing.T) {
	repo := repository.NewMemoryReceiptRepository()
	seed(t, repo, "ORDER-1", domain.StatusPending, time.Now())
	seed(t, repo, "ORDER-2", domain.StatusPending, time.Now())
	p := NewPoller(&scriptedGateway{answers: []answer{pending()}},
		usecase.NewReconcileUsecase(repo, nil, zap.NewNop()), tickEvery, time.Minute, zap.NewNop())

	p.Watch("ORDER-1", "TX-ORDER-1")
	p.Watch("ORDER-2", "TX-ORDER-2")
	p.StopAll()

	assert.Equal(t, 0, p.Active())
	assert.False(t, p.Watch("ORDER-3", "TX-ORDER-3"))
}

func TestReleaseWorker_ReleasesDueReceipts(t *testing.T) {
	repo := repository.NewMemoryReceiptRepository()
	now := time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)
	seed(t, repo, "ORDER-DUE", domain.StatusProcessing, now.Add(-25*time.Hour))
	seed(t, repo, "ORDER-LATER", domain.StatusProcessing, now.Add(-time.Hour))

	w := NewReleaseWorker(usecase.NewReleaseUsecase(repo, 24*time.Hour, nil, zap.NewNop()), tickEvery, zap.NewNop())
	w.now = func() time.Time { return now }

	done := make(chan struct{})
	go func() {
		w.Start(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool {
		return statusOf(t, repo, "ORDER-DUE") == domain.StatusLoanReleased
	}, waitFor, tickEvery)
	assert.Equal(t, domain.StatusProcessing, statusOf(t, repo, "ORDER-LATER"))

	w.Stop()
	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("release worker did not stop")
	}
}

func TestReleaseWorker_StopsOnContextCancel(t *testing.T) {
	w := NewReleaseWorker(usecase.NewReleaseUsecase(repository.NewMemoryReceiptRepository(), 24*time.Hour, nil, zap.NewNop()), time.Hour, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("release worker ignored context cancellation")
	}
}
