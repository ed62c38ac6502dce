package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chris/stars-ledger/pkg/app"
	"github.com/chris/stars-ledger/pkg/config"
	"github.com/chris/stars-ledger/pkg/settlement"
	"github.com/chris/stars-ledger/pkg/websockets"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	slog.SetDefault(cfg.Logger())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The local server pushes balance updates over its own /ws endpoint.
	application, err := app.New(ctx, cfg, app.Options{Hub: websockets.NewHub()})
	if err != nil {
		log.Fatalf("failed to wire application: %v", err)
	}

	go flagStale(ctx, application.Processor, cfg.StaleAfter)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           application.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to shut down server", "error", err)
		}
	}()

	slog.Info("starting server", "port", cfg.HTTPPort, "payment_mode", cfg.PaymentMode)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("failed to start server: %v", err)
	}
}

// flagStale runs reconciliation in-process. Deployed stacks use the reconciliation lambda instead.
func flagStale(ctx context.Context, processor *settlement.Processor, maxAge time.Duration) {
	ticker := time.NewTicker(maxAge / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := processor.FlagStale(ctx, maxAge); err != nil {
				slog.Log(ctx, slog.LevelError, "failed to check for stale payments", "error", err)
			}
		}
	}
}
