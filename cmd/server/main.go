// Package main is the entry point for the stockflow API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"stockflow/internal/app"
	"stockflow/internal/config"
	"stockflow/internal/core/security"
	"stockflow/internal/infrastructure/auth"
	v1 "stockflow/internal/infrastructure/http/v1"
	"stockflow/internal/infrastructure/http/v1/handlers"
	"stockflow/internal/infrastructure/observability"
	"stockflow/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Development: !cfg.App.IsProduction(),
		Service:     cfg.App.Name,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := logger.WithLogger(context.Background(), log)
	log.Infow("starting stockflow server", "env", cfg.App.Env, "storage", cfg.Storage.Driver)

	// --- Tracing ---
	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingConfig{
		Enabled:        cfg.Telemetry.Enabled,
		Endpoint:       cfg.Telemetry.OTLPEndpoint,
		Insecure:       !cfg.App.IsProduction(),
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: v1.Version,
	})
	if err != nil {
		log.Fatalw("failed to set up tracing", "error", err)
	}

	// --- Storage and services ---
	services, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to initialize storage", "error", err)
	}
	defer services.Close()

	// --- Auth ---
	jwtConfig := auth.DefaultJWTConfig(cfg.Auth.JWTSecret)
	jwtConfig.Issuer = cfg.Auth.Issuer
	jwtConfig.AccessTokenTTL = cfg.Auth.TokenTTL
	jwtService := auth.NewJWTService(jwtConfig)

	policy, err := security.NewCELPolicy(cfg.Auth.PolicyExpr)
	if err != nil {
		log.Fatalw("invalid transition policy", "error", err)
	}
	log.Infow("transition policy loaded", "expression", policy.Expression())

	// --- Router ---
	routerCfg := v1.RouterConfig{
		Logger:         log,
		JWTValidator:   jwtService,
		AllowAnonymous: cfg.Auth.AllowAnonymous,
		Policy:         policy,
		Products:       services.Products,
		Movements:      services.Movements,
		Ledger:         services.Ledger,
	}
	// Typed nils must not reach the interface fields.
	if services.Pool != nil {
		routerCfg.Database = handlers.Pinger(services.Pool)
	}
	if services.Idempotency != nil {
		routerCfg.Idempotency = services.Idempotency
	}
	router := v1.NewRouter(routerCfg)

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Infow("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warnw("failed to flush traces", "error", err)
	}

	log.Info("server stopped")
}
