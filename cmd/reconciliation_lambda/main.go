package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/chris/stars-ledger/pkg/app"
	"github.com/chris/stars-ledger/pkg/config"
	"github.com/chris/stars-ledger/pkg/settlement"
)

var (
	processor  *settlement.Processor
	staleAfter time.Duration
)

func init() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	slog.SetDefault(cfg.Logger())

	application, err := app.New(context.Background(), cfg, app.Options{})
	if err != nil {
		log.Fatalf("failed to wire application: %v", err)
	}
	processor = application.Processor
	staleAfter = cfg.StaleAfter
}

// HandleRequest is triggered by an EventBridge Schedule. It flags payments left pending past the
// threshold for an operator; their charge may still arrive, so none of them is failed here.
func HandleRequest(ctx context.Context) error {
	slog.Log(ctx, slog.LevelInfo, "starting reconciliation of stale payments", "stale_after", staleAfter)

	flagged, err := processor.FlagStale(ctx, staleAfter)
	if err != nil {
		slog.Log(ctx, slog.LevelError, "reconciliation failed", "error", err)
		return err
	}

	slog.Log(ctx, slog.LevelInfo, "reconciliation finished", "stale", len(flagged))
	return nil
}

func main() {
	lambda.Start(HandleRequest)
}
