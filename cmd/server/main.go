package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/dealerdesk/be-payment-approvals/internal/client"
	"github.com/dealerdesk/be-payment-approvals/internal/config"
	"github.com/dealerdesk/be-payment-approvals/internal/handler"
	"github.com/dealerdesk/be-payment-approvals/internal/middleware"
	"github.com/dealerdesk/be-payment-approvals/internal/repository"
	"github.com/dealerdesk/be-payment-approvals/internal/service"
	"github.com/dealerdesk/be-payment-approvals/internal/session"
)

func main() {
	cfg := config.Load()

	log := newLogger(cfg)
	log.Info().
		Str("service", cfg.ServiceName).
		Str("version", cfg.Version).
		Str("environment", cfg.Environment).
		Msg("Starting Payment Approvals Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create database pool")
	}
	defer db.Close()
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	log.Info().Msg("Database connection established")

	// Redis-backed selection state
	selectionStore, err := session.NewSelectionStore(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to redis")
	}
	defer selectionStore.Close()
	log.Info().Msg("Redis connection established")

	// NATS is optional; notifications are best-effort
	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			log.Warn().Err(err).Msg("NATS unavailable; bulk notifications disabled")
		} else {
			defer natsConn.Close()
			log.Info().Str("nats_url", cfg.NATSURL).Msg("NATS connection established")
		}
	}

	// External collaborator clients
	paymentsClient := client.NewPaymentsClient(cfg.PaymentsBaseURL)
	workflowClient := client.NewWorkflowClient(cfg.WorkflowBaseURL)
	notifier := client.NewNotificationPublisher(natsConn, log)
	log.Info().
		Str("payments_url", cfg.PaymentsBaseURL).
		Str("workflow_url", cfg.WorkflowBaseURL).
		Msg("Service clients initialized")

	// Repositories and services
	auditRepo := repository.NewAuditRepository(db)
	pendingService := service.NewPendingService(paymentsClient, workflowClient, cfg.WorkflowFetchConcurrency, log)
	bulkService := service.NewBulkService(paymentsClient, selectionStore, pendingService, auditRepo, notifier, cfg.BulkTimeout, log)

	// HTTP routes
	httpHandler := handler.NewHTTPHandler(pendingService, bulkService, selectionStore, auditRepo, log)
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	mux.HandleFunc("/api/v1/approvals/pending", httpHandler.Pending)
	mux.HandleFunc("/api/v1/approvals/selection", httpHandler.Selection)
	mux.HandleFunc("/api/v1/approvals/selection/toggle", httpHandler.ToggleSelection)
	mux.HandleFunc("/api/v1/approvals/bulk-approve", httpHandler.BulkApprove)
	mux.HandleFunc("/api/v1/approvals/bulk-reject", httpHandler.BulkReject)
	mux.HandleFunc("/api/v1/approvals/audit", httpHandler.Audit)

	// Apply middleware
	var h http.Handler = mux
	h = middleware.Viewer([]byte(cfg.JWTSecret), "/health")(h)
	h = middleware.RequestID(h)
	h = middleware.Logger(log)(h)
	h = middleware.Recovery(log)(h)
	h = middleware.CORS([]string{"*"})(h)
	h = middleware.Timeout(cfg.WriteTimeout)(h)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if cfg.Environment == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).Level(level).With().Timestamp().
			Str("service", cfg.ServiceName).Logger()
	}
	return zerolog.New(os.Stdout).Level(level).With().Timestamp().
		Str("service", cfg.ServiceName).
		Str("version", cfg.Version).Logger()
}
