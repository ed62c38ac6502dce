// Package app wires the ledger's components from a Config. Every entry point builds on it.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/chris/stars-ledger/pkg/audit"
	"github.com/chris/stars-ledger/pkg/catalog"
	"github.com/chris/stars-ledger/pkg/config"
	"github.com/chris/stars-ledger/pkg/handlers"
	"github.com/chris/stars-ledger/pkg/handlers/admin"
	"github.com/chris/stars-ledger/pkg/handlers/payments"
	"github.com/chris/stars-ledger/pkg/handlers/webhook"
	wshandlers "github.com/chris/stars-ledger/pkg/handlers/websockets"
	"github.com/chris/stars-ledger/pkg/invoice"
	"github.com/chris/stars-ledger/pkg/metrics"
	"github.com/chris/stars-ledger/pkg/middleware"
	"github.com/chris/stars-ledger/pkg/provider/telegram"
	"github.com/chris/stars-ledger/pkg/scheduler"
	"github.com/chris/stars-ledger/pkg/settlement"
	"github.com/chris/stars-ledger/pkg/storage"
	dydbstore "github.com/chris/stars-ledger/pkg/storage/dynamodb"
	"github.com/chris/stars-ledger/pkg/storage/memory"
	"github.com/chris/stars-ledger/pkg/websockets"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Store is everything the ledger persists, connections included.
type Store interface {
	storage.Storage
	storage.WebSocketManager
}

// Options select the pieces that differ between entry points.
type Options struct {
	// Hub, when set, receives balance updates instead of the API Gateway WebSocket API.
	Hub *websockets.Hub
	// Store overrides the backend chosen by the config.
	Store Store
}

// App holds the wired components.
type App struct {
	Config    *config.Config
	Store     Store
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
	Catalog   *catalog.Catalog
	Audit     *audit.Recorder
	Auth      *middleware.AdminAuth
	Provider  telegram.Client
	Issuer    *invoice.Issuer
	Processor *settlement.Processor
	Scheduler scheduler.Scheduler
	Hub       *websockets.Hub

	aws *aws.Config
}

// New builds an App from cfg.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{
		Config:   cfg,
		Registry: prometheus.NewRegistry(),
		Catalog:  catalog.Default(),
		Hub:      opts.Hub,
	}
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.New(a.Registry)

	a.Store = opts.Store
	if a.Store == nil {
		store, err := a.newStore(ctx)
		if err != nil {
			return nil, err
		}
		a.Store = store
	}

	recorder, err := audit.NewRecorder(a.Store, cfg.AuditNodeID, a.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit recorder: %w", err)
	}
	a.Audit = recorder
	a.Auth = middleware.NewAdminAuth(cfg.AdminJWTSecret, cfg.BotToken, cfg.AdminIDs)
	if cfg.AdminInitDataMaxAge > 0 {
		a.Auth.InitDataMaxAge = cfg.AdminInitDataMaxAge
	}

	if cfg.BotToken != "" {
		client := telegram.NewHTTPClient(cfg.BotToken, cfg.Retry, a.Metrics)
		if cfg.TelegramAPIBaseURL != "" {
			client.BaseURL = cfg.TelegramAPIBaseURL
		}
		a.Provider = client
	}

	publisher, err := a.newPublisher(ctx)
	if err != nil {
		return nil, err
	}

	a.Issuer = invoice.NewIssuer(a.Store, a.Catalog, a.Provider, cfg.PaymentMode, a.Metrics)
	a.Processor = settlement.NewProcessor(a.Store, a.Audit, publisher, a.Provider, cfg.PaymentMode, a.Metrics)

	if cfg.SQSQueueURL != "" {
		awsCfg, err := a.awsConfig(ctx)
		if err != nil {
			return nil, err
		}
		a.Scheduler = scheduler.NewSQSScheduler(sqs.NewFromConfig(*awsCfg), cfg.SQSQueueURL)
	}

	slog.Log(ctx, slog.LevelInfo, "application wired",
		"payment_mode", cfg.PaymentMode,
		"storage_backend", cfg.StorageBackend,
		"queued_updates", a.Scheduler != nil,
		"provider", a.Provider != nil,
	)
	return a, nil
}

// Router returns the HTTP API together with /metrics and, with a Hub, the /ws feed.
func (a *App) Router() chi.Router {
	h := handlers.NewApiHandler(
		payments.NewPaymentsHandler(a.Issuer, a.Processor, a.Store, a.Catalog),
		webhook.NewWebhookHandler(a.Processor, a.Scheduler, a.Config.WebhookSecret),
		admin.NewAdminHandler(a.Auth, a.Store, a.Audit, a.Processor),
	)

	opts := handlers.RouterOptions{
		Logger:   a.Config.Logger(),
		Auth:     a.Auth,
		Gatherer: a.Registry,
	}
	if a.Hub != nil {
		opts.LiveFeed = wshandlers.NewHandler(a.Store, a.Hub)
	}
	return handlers.NewRouter(h, opts)
}

func (a *App) newStore(ctx context.Context) (Store, error) {
	switch a.Config.StorageBackend {
	case config.BackendMemory:
		slog.Log(ctx, slog.LevelWarn, "using in-memory storage, data is lost on restart")
		return memory.New(), nil
	default:
		awsCfg, err := a.awsConfig(ctx)
		if err != nil {
			return nil, err
		}
		return dydbstore.New(dynamodb.NewFromConfig(*awsCfg), a.Config.Tables), nil
	}
}

func (a *App) newPublisher(ctx context.Context) (websockets.Publisher, error) {
	switch {
	case a.Hub != nil:
		return a.Hub, nil
	case a.Config.WebsocketAPIEndpoint != "":
		publisher, err := websockets.NewPublisher(ctx, a.Store, a.Config.WebsocketAPIEndpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to create websocket publisher: %w", err)
		}
		return publisher, nil
	default:
		return &websockets.NoOpPublisher{}, nil
	}
}

func (a *App) awsConfig(ctx context.Context) (*aws.Config, error) {
	if a.aws != nil {
		return a.aws, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	a.aws = &cfg
	return a.aws, nil
}
