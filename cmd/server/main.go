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

	"github.com/joho/godotenv"

	"github.com/sudo-init-do/tradeexchange/internal/auth"
	"github.com/sudo-init-do/tradeexchange/internal/config"
	"github.com/sudo-init-do/tradeexchange/internal/db"
	"github.com/sudo-init-do/tradeexchange/internal/logging"
	"github.com/sudo-init-do/tradeexchange/internal/messaging"
	"github.com/sudo-init-do/tradeexchange/internal/payments"
	"github.com/sudo-init-do/tradeexchange/internal/server"
	"github.com/sudo-init-do/tradeexchange/internal/store"
	"github.com/sudo-init-do/tradeexchange/internal/store/memory"
	"github.com/sudo-init-do/tradeexchange/internal/store/postgres"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Logging)

	ctx := context.Background()
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("storage unavailable", slog.Any("error", err))
		os.Exit(1)
	}
	defer st.Close()

	responder, closeResponder, err := buildResponder(cfg)
	if err != nil {
		logger.Error("responder setup failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeResponder()

	gateway, closeGateway := buildGateway(cfg, logger)
	defer closeGateway()

	e := server.New(server.Deps{
		Config:    cfg,
		Store:     st,
		Tokens:    auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL),
		Logger:    logger,
		Responder: responder,
		Gateway:   gateway,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("port", cfg.Port), slog.String("storage_mode", cfg.StorageMode))
		errCh <- e.Start(":" + cfg.Port)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped unexpectedly", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
	}
}

// openStore connects to postgres when a database is configured. In degraded
// mode an unreachable database falls back to the in-memory store; in strict
// mode it is fatal.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		if cfg.Strict() {
			return nil, errors.New("DATABASE_URL is required in strict storage mode")
		}
		logger.Warn("no database configured, using in-memory store")
		return memory.New(), nil
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err == nil {
		err = db.EnsureSchema(ctx, pool, logger)
		if err != nil {
			pool.Close()
		}
	}
	if err != nil {
		if cfg.Strict() {
			return nil, err
		}
		logger.Warn("database unreachable, using in-memory store", slog.Any("error", err))
		return memory.New(), nil
	}
	logger.Info("connected to postgres")
	return postgres.New(pool, cfg.Strict(), logger), nil
}

func buildResponder(cfg *config.Config) (messaging.Responder, func(), error) {
	switch cfg.Responder.Kind {
	case "none":
		return nil, func() {}, nil
	case "ollama":
		r, err := messaging.NewOllamaResponder(cfg.Responder.OllamaBaseURL, cfg.Responder.OllamaModel, cfg.Responder.Timeout)
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil
	}
	return messaging.EchoResponder{}, func() {}, nil
}

func buildGateway(cfg *config.Config, logger *slog.Logger) (payments.Gateway, func()) {
	if cfg.Payments.GatewayURL == "" {
		logger.Warn("no payment gateway configured, charges are approved offline")
		return payments.OfflineGateway{}, func() {}
	}
	gw := payments.NewHTTPGateway(cfg.Payments.GatewayURL, cfg.Payments.APIKey, cfg.Payments.Timeout)
	return gw, gw.CloseIdleConnections
}
