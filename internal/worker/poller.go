// internal/worker/poller.go
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tgggt66uhgg/stk-push/internal/domain"
	"github.com/tgggt66uhgg/stk-push/internal/events"
	"github.com/tgggt66uhgg/stk-push/internal/metrics"
	"github.com/tgggt66uhgg/stk-push/internal/provider"
	"github.com/tgggt66uhgg/stk-push/internal/usecase"

	"go.uber.org/zap"
)

// Poller runs one status-polling loop per initiated payment. Each loop ends
// when its receipt leaves pending, disappears, or outlives maxLifetime.
type Poller struct {
	gateway     provider.Gateway
	reconcile   *usecase.ReconcileUsecase
	interval    time.Duration
	maxLifetime time.Duration
	logger      *zap.Logger

	root    context.Context
	stopAll context.CancelFunc

	mu      sync.Mutex
	active  map[string]context.CancelFunc
	stopped bool
	wg      sync.WaitGroup
}

func NewPoller(
	gateway provider.Gateway,
	reconcile *usecase.ReconcileUsecase,
	interval, maxLifetime time.Duration,
	logger *zap.Logger,
) *Poller {
	root, cancel := context.WithCancel(context.Background())
	return &Poller{
		gateway:     gateway,
		reconcile:   reconcile,
		interval:    interval,
		maxLifetime: maxLifetime,
		logger:      logger,
		root:        root,
		stopAll:     cancel,
		active:      make(map[string]context.CancelFunc),
	}
}

var _ usecase.Watcher = (*Poller)(nil)

// Watch starts polling transactionID on behalf of reference. It returns false
// when a loop for reference is already running or the poller is shut down.
func (p *Poller) Watch(reference, transactionID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return false
	}
	if _, ok := p.active[reference]; ok {
		return false
	}

	ctx, cancel := context.WithTimeout(p.root, p.maxLifetime)
	p.active[reference] = cancel
	p.wg.Add(1)
	metrics.ActivePollers.Inc()

	go p.run(ctx, cancel, reference, transactionID)
	return true
}

// Active reports how many loops are running.
func (p *Poller) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

// StopAll cancels every loop and waits for them to exit.
func (p *Poller) StopAll() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	p.stopAll()
	p.wg.Wait()
	p.logger.Info("all pollers stopped")
}

func (p *Poller) run(ctx context.Context, cancel context.CancelFunc, reference, transactionID string) {
	defer func() {
		cancel()
		p.mu.Lock()
		delete(p.active, reference)
		p.mu.Unlock()
		metrics.ActivePollers.Dec()
		p.wg.Done()
	}()

	log := p.logger.With(zap.String("reference", reference), zap.String("transaction_id", transactionID))
	log.Info("polling started", zap.Duration("interval", p.interval), zap.Duration("max_lifetime", p.maxLifetime))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if p.tick(ctx, log, reference, transactionID) {
				return
			}
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				log.Warn("polling gave up, receipt still pending")
			} else {
				log.Info("polling cancelled")
			}
			return
		}
	}
}

// tick runs one poll and reports whether the loop is done.
func (p *Poller) tick(ctx context.Context, log *zap.Logger, reference, transactionID string) bool {
	start := time.Now()
	ev, err := p.gateway.QueryStatus(ctx, transactionID)
	metrics.GatewayLatency.WithLabelValues("status").Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		metrics.PollTicks.WithLabelValues(metrics.ResultTransport).Inc()
		log.Warn("status poll failed, will retry", zap.Error(err))
		return false
	}

	res, err := p.reconcile.Apply(ctx, reference, ev, events.SourcePoller)
	switch {
	case errors.Is(err, domain.ErrReceiptNotFound):
		metrics.PollTicks.WithLabelValues(metrics.ResultVanished).Inc()
		log.Info("receipt no longer exists, polling stopped")
		return true
	case err != nil:
		metrics.PollTicks.WithLabelValues(metrics.ResultError).Inc()
		log.Error("failed to apply poll result", zap.Error(err))
		return false
	case res.Ignored:
		metrics.PollTicks.WithLabelValues(metrics.ResultIgnored).Inc()
		log.Debug("payment still pending", zap.String("gateway_status", ev.Status))
	case res.Changed:
		metrics.PollTicks.WithLabelValues(metrics.ResultApplied).Inc()
	default:
		metrics.PollTicks.WithLabelValues(metrics.ResultNoop).Inc()
	}

	if res.Receipt.Status != domain.StatusPending {
		log.Info("polling finished", zap.String("status", string(res.Receipt.Status)))
		return true
	}
	return false
}
