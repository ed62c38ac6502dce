package handlers

import (
	"log/slog"
	"net/http"

	"github.com/chris/stars-ledger/pkg/api"
	"github.com/chris/stars-ledger/pkg/handlers/admin"
	"github.com/chris/stars-ledger/pkg/handlers/payments"
	"github.com/chris/stars-ledger/pkg/handlers/response"
	"github.com/chris/stars-ledger/pkg/handlers/webhook"
	"github.com/chris/stars-ledger/pkg/metrics"
	"github.com/chris/stars-ledger/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// ApiHandler implements the generated server interface by composing the
// handler of each route group.
type ApiHandler struct {
	*payments.PaymentsHandler
	*webhook.WebhookHandler
	*admin.AdminHandler
}

// NewApiHandler creates a new ApiHandler.
func NewApiHandler(p *payments.PaymentsHandler, wh *webhook.WebhookHandler, a *admin.AdminHandler) *ApiHandler {
	return &ApiHandler{
		PaymentsHandler: p,
		WebhookHandler:  wh,
		AdminHandler:    a,
	}
}

// Make sure we conform to the interface
var _ api.ServerInterface = (*ApiHandler)(nil)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Logger *slog.Logger
	// Auth guards the admin operations. Without it they are refused.
	Auth *middleware.AdminAuth
	// Gatherer is served on /metrics when set.
	Gatherer prometheus.Gatherer
	// LiveFeed is served on /ws when set.
	LiveFeed http.Handler
}

// NewRouter mounts the API and the operational endpoints on a chi router.
func NewRouter(h api.ServerInterface, opts RouterOptions) chi.Router {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(middleware.NewStructuredLogger(logger, "/metrics", "/healthz"))
	router.Use(chimiddleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	if opts.Gatherer != nil {
		router.Handle("/metrics", metrics.Handler(opts.Gatherer))
	}
	if opts.LiveFeed != nil {
		router.Handle("/ws", opts.LiveFeed)
	}

	guard := api.MiddlewareFunc(refuseSecured)
	if opts.Auth != nil {
		guard = opts.Auth.Middleware
	}

	api.HandlerWithOptions(h, api.ChiServerOptions{
		BaseRouter:  router,
		Middlewares: []api.MiddlewareFunc{guard},
		ErrorHandlerFunc: func(w http.ResponseWriter, r *http.Request, err error) {
			response.Error(w, r, err)
		},
	})
	return router
}

func refuseSecured(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Context().Value(api.BearerAuthScopes) != nil {
			response.JSON(w, http.StatusServiceUnavailable, api.Error{Error: "admin access is not configured"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
