package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	cfhttp "github.com/careflow-io/careflow/internal/adapter/http"
	"github.com/careflow-io/careflow/internal/adapter/intentapi"
	cfnats "github.com/careflow-io/careflow/internal/adapter/nats"
	"github.com/careflow-io/careflow/internal/adapter/natskv"
	"github.com/careflow-io/careflow/internal/adapter/orderapi"
	"github.com/careflow-io/careflow/internal/adapter/otel"
	"github.com/careflow-io/careflow/internal/adapter/postgres"
	"github.com/careflow-io/careflow/internal/adapter/ristretto"
	"github.com/careflow-io/careflow/internal/adapter/tiered"
	"github.com/careflow-io/careflow/internal/adapter/visionapi"
	"github.com/careflow-io/careflow/internal/adapter/walletapi"
	"github.com/careflow-io/careflow/internal/adapter/ws"
	"github.com/careflow-io/careflow/internal/config"
	"github.com/careflow-io/careflow/internal/logger"
	"github.com/careflow-io/careflow/internal/middleware"
	"github.com/careflow-io/careflow/internal/resilience"
	"github.com/careflow-io/careflow/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	slog.SetDefault(logger.New(cfg.Logging))
	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"intent_threshold", cfg.Workflow.IntentRoutingThreshold,
		"approve_threshold", cfg.Workflow.RefundAutoApproveThreshold,
	)

	ctx := context.Background()

	// --- Infrastructure ---

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	queue, err := cfnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()

	orderKV, err := queue.KeyValue(ctx, "careflow-orders", cfg.Cache.OrderTTL)
	if err != nil {
		return fmt.Errorf("order cache bucket: %w", err)
	}
	idemKV, err := queue.KeyValue(ctx, "careflow-idempotency", 24*time.Hour)
	if err != nil {
		return fmt.Errorf("idempotency bucket: %w", err)
	}

	l1, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("ristretto: %w", err)
	}
	orderCache := tiered.New(l1, natskv.New(orderKV), cfg.Cache.OrderTTL)

	// --- External collaborators ---

	retry := resilience.NewRetryPolicy(cfg.Adapters.CallTimeout, cfg.Adapters.MaxRetries,
		cfg.Adapters.BackoffBase, cfg.Adapters.BackoffFactor)
	newBreaker := func() *resilience.Breaker {
		return resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	}

	orders := orderapi.NewCachedStore(
		orderapi.NewClient(cfg.Adapters.OrderStoreURL, retry, newBreaker()),
		orderCache, cfg.Cache.OrderTTL)
	classifier := intentapi.NewClient(cfg.Adapters.ClassifierURL, retry, newBreaker())
	analyzer := visionapi.NewClient(cfg.Adapters.VisionURL, retry, newBreaker())
	walletClient := walletapi.NewClient(cfg.Adapters.WalletURL, retry, newBreaker())

	// --- Services ---

	hub := ws.NewHub()
	store := postgres.NewStore(pool)
	events := postgres.NewEventStore(pool)

	auditSvc := service.NewAuditService(events)
	escSvc := service.NewEscalationService(store, queue, hub, walletClient, cfg.Escalation)
	subsSvc := service.NewSubscriptionService(walletClient)
	workflowSvc := service.NewWorkflowService(store, orders, classifier, analyzer,
		walletClient, walletClient, escSvc, auditSvc, queue, cfg.Workflow)

	stopSweeper := workflowSvc.StartSweeper(ctx)
	defer stopSweeper()

	// --- HTTP ---

	handlers := cfhttp.NewHandlers(workflowSvc, escSvc, auditSvc, subsSvc, orders, hub)

	limiter := middleware.NewRateLimiter(5, 10)
	stopLimiter := limiter.StartCleanup(time.Minute, 10*time.Minute)
	defer stopLimiter()

	r := chi.NewRouter()
	r.Use(cfhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(middleware.RequestID)
	r.Use(cfhttp.Logger)
	r.Use(otel.HTTPMiddleware(cfg.Logging.Service))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(limiter.Handler)
	r.Use(middleware.Idempotency(idemKV))

	cfhttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
