package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"payment-orchestrator/config"
	"payment-orchestrator/docs"
	"payment-orchestrator/internal/adapter/collaborator"
	httpHandler "payment-orchestrator/internal/adapter/http/handler"
	"payment-orchestrator/internal/adapter/messaging/kafka"
	pgStorage "payment-orchestrator/internal/adapter/storage/postgres"
	redisStorage "payment-orchestrator/internal/adapter/storage/redis"
	"payment-orchestrator/internal/core/ports"
	"payment-orchestrator/internal/service"
	"payment-orchestrator/pkg/logger"
)

const serviceName = "payment-service"

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("POC_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(serviceName, cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting payment orchestrator")

	if cfg.ServiceAuth.Secret == "" {
		log.Fatal().Msg("service_auth.secret must be set: settlements cannot be authorized without it")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Store
	store := service.NewPaymentStore(
		pgStorage.NewPaymentRepo(pool),
		pgStorage.NewAuditRepo(pool),
		pgStorage.NewTransactor(pool),
		log,
	)
	resolver := service.NewIdempotencyResolver(store, redisStorage.NewIdempotencyCache(rdb), log)

	// Collaborators. Per-call deadlines come from the clients' own timeouts.
	httpClient := &http.Client{}
	tokenSvc := service.NewJWTTokenService(cfg.ServiceAuth.Secret, cfg.ServiceAuth.TTL, cfg.ServiceAuth.Issuer, cfg.ServiceAuth.Audience)
	identity := collaborator.NewIdentityClient(cfg.Collaborators.Identity.BaseURL, cfg.Collaborators.Identity.Timeout, httpClient, log)
	wallets := collaborator.NewWalletClient(cfg.Collaborators.Wallet.BaseURL, cfg.Collaborators.Wallet.Timeout, httpClient, tokenSvc, log)
	validator := service.NewTransferValidator(identity, wallets, log)

	// Events
	var events ports.EventPublisher = kafka.NewNopPublisher(log)
	if cfg.Kafka.Enabled {
		writer := kafka.NewWriter(cfg.Kafka.Brokers)
		defer func() {
			if err := writer.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close Kafka writer")
			}
		}()
		events = kafka.NewPublisher(writer, cfg.Kafka.Topic, log)
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Kafka publisher enabled")
	}

	// Settlement worker
	worker := service.NewSettlementWorker(store, wallets, events, service.SettlementConfig{
		Workers:       cfg.Settlement.Workers,
		QueueSize:     cfg.Settlement.QueueSize,
		SettleTimeout: cfg.Settlement.SettleTimeout,
		SweepInterval: cfg.Settlement.SweepInterval,
		PendingGrace:  cfg.Settlement.PendingGrace,
		StuckAfter:    cfg.Settlement.StuckAfter,
		SweepBatch:    cfg.Settlement.SweepBatch,
	}, log)

	var workerWG sync.WaitGroup
	workerWG.Add(1)
	go func() {
		defer workerWG.Done()
		worker.Run(ctx)
	}()

	paymentSvc := service.NewPaymentService(identity, wallets, resolver, validator, store, worker, events, log)
	healthSvc := service.NewHealthService(cfg.Health.Timeout, log,
		identity,
		wallets,
		pgStorage.NewHealthCheck(pool),
		redisStorage.NewHealthCheck(rdb),
	)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		PaymentSvc:     paymentSvc,
		HealthSvc:      healthSvc,
		Identity:       identity,
		RateLimitStore: redisStorage.NewRateLimitStore(rdb),
		Logger:         log,
		Mode:           cfg.Server.Mode,
		OpenAPISpec:    docs.OpenAPI,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server...")
	case err := <-serverErr:
		log.Error().Err(err).Msg("HTTP server failed")
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// In-flight settlements stay PROCESSING; the sweeper resumes them on restart.
	workerWG.Wait()

	log.Info().Msg("Server exited")
}
