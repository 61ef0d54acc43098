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

	"pliz-ledger/config"
	httpHandler "pliz-ledger/internal/adapter/http/handler"
	redisStorage "pliz-ledger/internal/adapter/storage/redis"
	"pliz-ledger/internal/app"
	"pliz-ledger/internal/service"
	"pliz-ledger/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("PLZ_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config:\n%v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("database", cfg.Database.Driver).
		Str("notifier", cfg.Notifier.Driver).
		Msg("Starting Pliz ledger")

	ctx := context.Background()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer a.Close()

	if a.Worker != nil {
		if err := a.Worker.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start queue worker")
		}
	}

	var scheduler *service.Scheduler
	if cfg.Reconciliation.Enabled {
		scheduler, err = service.NewScheduler(a.Reconciliation, service.SchedulerConfig{
			Schedule:   cfg.Reconciliation.Schedule,
			StaleAfter: cfg.Reconciliation.StaleAfter,
		}, logger.Component(log, "scheduler"))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule reconciliation")
		}
		scheduler.Start()
	}

	var spec []byte
	if specBytes, err := os.ReadFile("docs/api/openapi.yaml"); err == nil {
		spec = specBytes
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		SettlementSvc:  a.Settlement,
		WebhookSvc:     a.Webhooks,
		TokenSvc:       a.Tokens,
		RequestKeys:    redisStorage.NewRequestKeyStore(a.Redis),
		RateLimitStore: redisStorage.NewRateLimitStore(a.Redis),
		HealthCheckers: a.HealthCheckers,
		OpenAPISpec:    spec,
		Mode:           cfg.Server.Mode,
		Logger:         log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	if a.Worker != nil {
		a.Worker.Shutdown()
	}

	log.Info().Msg("Server exited")
}
