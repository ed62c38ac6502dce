package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/chris/stars-ledger/pkg/app"
	"github.com/chris/stars-ledger/pkg/config"
	"github.com/chris/stars-ledger/pkg/provider/telegram"
	"github.com/chris/stars-ledger/pkg/settlement"
)

// UpdateHandler processes one Bot API update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update telegram.Update) (settlement.Result, error)
}

var processor UpdateHandler

func setup() {
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
}

// HandleRequest settles the updates queued by the webhook. Only messages that failed for
// infrastructure reasons are reported back, so SQS redelivers just those.
func HandleRequest(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse

	for _, message := range sqsEvent.Records {
		var update telegram.Update
		if err := json.Unmarshal([]byte(message.Body), &update); err != nil {
			// Redelivery cannot fix a malformed body.
			slog.Log(ctx, slog.LevelError, "dropping undecodable update", "message_id", message.MessageId, "error", err)
			continue
		}

		result, err := processor.HandleUpdate(ctx, update)
		if err != nil {
			slog.Log(ctx, slog.LevelError, "failed to handle update", "message_id", message.MessageId, "update_id", update.UpdateID, "error", err)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: message.MessageId})
			continue
		}

		slog.Log(ctx, slog.LevelInfo, "update handled", "message_id", message.MessageId, "update_id", update.UpdateID, "type", result.Type, "status", result.Status)
	}

	return resp, nil
}

func main() {
	setup()
	lambda.Start(HandleRequest)
}
