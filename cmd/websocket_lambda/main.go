package main

import (
	"context"
	"log"
	"log/slog"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ledgerconfig "github.com/chris/stars-ledger/pkg/config"
	wshandlers "github.com/chris/stars-ledger/pkg/handlers/websockets"
	dydbstore "github.com/chris/stars-ledger/pkg/storage/dynamodb"
)

// Serves the $connect, $disconnect and $default routes of the API Gateway WebSocket API.
// Only the connections table is touched, so the full application is not wired.
func main() {
	cfg, err := ledgerconfig.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	slog.SetDefault(cfg.Logger())

	if cfg.Tables.Connections == "" {
		log.Fatal("DYNAMODB_WEBSOCKET_CONNECTIONS_TABLE_NAME environment variable not set")
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}

	store := dydbstore.New(dynamodb.NewFromConfig(awsCfg), cfg.Tables)
	handler := wshandlers.NewHandler(store, nil)

	lambda.Start(handler.Route)
}
