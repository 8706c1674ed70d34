// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tgggt66uhgg/stk-push/config"
	"github.com/tgggt66uhgg/stk-push/internal/document"
	"github.com/tgggt66uhgg/stk-push/internal/events"
	"github.com/tgggt66uhgg/stk-push/internal/handler"
	"github.com/tgggt66uhgg/stk-push/internal/provider/paynecta"
	"github.com/tgggt66uhgg/stk-push/internal/repository"
	"github.com/tgggt66uhgg/stk-push/internal/router"
	"github.com/tgggt66uhgg/stk-push/internal/usecase"
	"github.com/tgggt66uhgg/stk-push/internal/worker"
	"github.com/tgggt66uhgg/stk-push/pkg/id"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	_ = godotenv.Load()

	logger, err := newLogger(os.Getenv("ENVIRONMENT"))
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("starting stk-push service")

	cfg, err := config.Load(logger)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Receipt store
	repo, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open receipt store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer closeStore()

	// Event publishers
	hub := handler.NewHub([]string{cfg.Server.FrontendOrigin}, logger)
	publishers := events.Fanout{hub}
	var kafkaPublisher *events.KafkaPublisher
	if cfg.Kafka.Enabled {
		kafkaPublisher = events.NewKafkaPublisher(events.NewKafkaWriter(cfg.Kafka, logger), logger)
		publishers = append(publishers, kafkaPublisher)
		logger.Info("kafka publishing enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic))
	}

	// Gateway
	gateway := paynecta.NewPaynectaProvider(cfg.Gateway, logger)

	// Usecases and workers
	reconcileUC := usecase.NewReconcileUsecase(repo, publishers, logger)
	poller := worker.NewPoller(gateway, reconcileUC, cfg.Reconcile.PollInterval, cfg.Reconcile.PollMaxLifetime, logger)
	paymentUC := usecase.NewPaymentUsecase(
		repo,
		gateway,
		id.NewReferenceGenerator(),
		poller,
		publishers,
		cfg.Loan.DefaultAmount,
		logger,
	)
	callbackUC := usecase.NewCallbackUsecase(repo, reconcileUC, logger)
	releaseUC := usecase.NewReleaseUsecase(repo, cfg.Reconcile.ReleaseDelay, publishers, logger)
	receiptUC := usecase.NewReceiptUsecase(repo, document.NewReceiptRenderer())
	releaseWorker := worker.NewReleaseWorker(releaseUC, cfg.Reconcile.SweepInterval, logger)

	// Handlers and routes
	paymentHandler := handler.NewPaymentHandler(paymentUC, callbackUC, logger)
	receiptHandler := handler.NewReceiptHandler(receiptUC, hub, logger)
	r := router.SetupRoutes(paymentHandler, receiptHandler, []string{cfg.Server.FrontendOrigin}, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		releaseWorker.Start(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server forced to shutdown", zap.Error(err))
		}
		poller.StopAll()
		hub.Close()
		if kafkaPublisher != nil {
			if err := kafkaPublisher.Close(); err != nil {
				logger.Error("failed to close kafka writer", zap.Error(err))
			}
		}
		return nil
	})

	logger.Info("stk-push service started successfully",
		zap.String("port", cfg.Server.Port),
		zap.String("environment", cfg.Server.Env),
		zap.String("store", cfg.Store.Driver))

	if err := g.Wait(); err != nil {
		logger.Error("service stopped with error", zap.Error(err))
		return
	}
	logger.Info("server stopped")
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// openStore builds the configured receipt repository and returns a func
// that releases its connections.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.ReceiptRepository, func(), error) {
	noop := func() {}

	switch cfg.Store.Driver {
	case config.StoreMemory:
		logger.Warn("using in-memory receipt store, receipts are lost on restart")
		return repository.NewMemoryReceiptRepository(), noop, nil

	case config.StoreFile:
		repo, err := repository.NewFileReceiptRepository(cfg.Store.FilePath, logger)
		if err != nil {
			return nil, noop, err
		}
		return repo, noop, nil

	case config.StoreRedis:
		client, err := config.ConnectRedis(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, noop, err
		}
		return repository.NewRedisReceiptRepository(client, logger), func() { client.Close() }, nil

	case config.StorePostgres:
		pool, err := config.ConnectDB(ctx, cfg.Database, logger)
		if err != nil {
			return nil, noop, err
		}
		if err := repository.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, noop, err
		}
		return repository.NewPostgresReceiptRepository(pool), pool.Close, nil

	default:
		return nil, noop, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
