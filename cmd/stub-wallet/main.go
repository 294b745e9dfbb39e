package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spinforge/aleatest/internal/infra"
	"github.com/spinforge/aleatest/internal/walletserver"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("stub wallet failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	initial, err := cfg.InitialBalance()
	if err != nil {
		return fmt.Errorf("parse initial balance: %w", err)
	}

	ledger := walletserver.NewLedger()
	ledger.CreatePlayer(cfg.PlayerID, initial)
	logger.Info("player seeded",
		"player_id", cfg.PlayerID,
		"balance", initial.String())

	router := walletserver.NewRouter(ledger, cfg.SigningSecret, logger)

	addr := fmt.Sprintf(":%d", cfg.StubWalletPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("stub wallet starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("stub wallet shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("stub wallet error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("stub wallet shutdown failed: %w", err)
	}

	logger.Info("stub wallet stopped gracefully")
	return nil
}
