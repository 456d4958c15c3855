// Package main is the entry point for the TextLens API server.
//
// It loads configuration, connects the database pool, wires the plan
// registry, credit engine, provider clients, and HTTP handlers, and serves
// requests until a shutdown signal arrives.
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

	"textlens/internal/api/handlers"
	"textlens/internal/auth"
	"textlens/internal/billing"
	"textlens/internal/config"
	"textlens/internal/core"
	"textlens/internal/credits"
	"textlens/internal/db"
	"textlens/internal/external"
	"textlens/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so main can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("textlens API starting",
		"environment", cfg.Environment,
		"service", cfg.Service,
		"port", cfg.Server.Port,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.NewPool(ctx, cfg.Database)
	cancel()
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}

	// Repositories.
	userRepo := db.NewUserCreditRepo(pool, logger)
	guestRepo := db.NewGuestLedgerRepo(pool)
	usageRepo := db.NewUsageRecordRepo(pool)
	paymentRepo := db.NewPaymentRepo(pool)
	tokenRepo := db.NewAuthTokenRepo(pool)

	// Plan policy and resolution.
	registry := billing.NewStaticPlanRegistry()
	resolver := billing.NewPlanResolver(registry, paymentRepo, logger)

	// Credit accounting engine.
	hasher := credits.NewIPHasher(cfg.Metering.IPHashSecret)
	engine := credits.NewEngine(registry, resolver, userRepo, guestRepo, hasher, types.RealClock{}, logger)

	// Provider clients.
	winston := external.NewWinstonClient(cfg.Providers.WinstonBaseURL, cfg.Providers.WinstonAPIKey, cfg.Providers.Timeout, logger)
	openRouter := external.NewOpenRouterClient(cfg.Providers.OpenRouterBaseURL, cfg.Providers.OpenRouterAPIKey, cfg.Providers.Timeout, logger)
	citations := external.NewCitationClient(cfg.Providers.CrossrefBaseURL, cfg.Providers.OpenLibraryBaseURL, cfg.Providers.Timeout, logger)
	fetcher := external.NewPageFetcher(cfg.Providers.Timeout, logger)
	stripeClient := external.NewStripeClient(
		&http.Client{Timeout: 20 * time.Second},
		external.StripeClientConfig{SecretKey: cfg.Billing.StripeSecretKey, Logger: logger},
	)

	// Server chassis.
	tokens := auth.NewTokenService(tokenRepo)
	srv, err := core.NewServer(cfg, logger, tokens, pool)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Handlers.
	toolsHandler := handlers.NewToolsHandler(engine, winston, openRouter, fetcher, usageRepo, srv.Validator, logger)
	utilitiesHandler := handlers.NewUtilitiesHandler(srv.Validator)
	citationsHandler := handlers.NewCitationsHandler(citations)
	creditsHandler := handlers.NewCreditsHandler(engine)
	historyHandler := handlers.NewHistoryHandler(usageRepo, logger)
	billingHandler := handlers.NewBillingHandler(
		registry,
		stripeClient,
		&external.StripeVerifier{},
		paymentRepo,
		engine,
		userRepo,
		srv.Validator,
		cfg.Server.AppURL,
		cfg.Billing.StripeWebhookSecret,
		logger,
	)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		toolsHandler.RegisterRoutes,
		utilitiesHandler.RegisterRoutes,
		citationsHandler.RegisterRoutes,
		creditsHandler.RegisterRoutes,
		historyHandler.RegisterRoutes,
		billingHandler.RegisterRoutes,
	)

	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// runHTTPServer starts the server with graceful shutdown on SIGINT/SIGTERM.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured JSON logger at the configured level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
