package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/chris/stars-ledger/pkg/api"
	"github.com/chris/stars-ledger/pkg/handlers/response"
	"github.com/chris/stars-ledger/pkg/mapping"
	"github.com/chris/stars-ledger/pkg/middleware"
	"github.com/chris/stars-ledger/pkg/models"
	"github.com/chris/stars-ledger/pkg/settlement"
	"github.com/chris/stars-ledger/pkg/storage"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Service performs privileged ledger mutations.
type Service interface {
	ManualVerify(ctx context.Context, intentID int64, actorID string) (*settlement.Outcome, error)
	Refund(ctx context.Context, intentID int64, actorID string) (*models.PaymentIntent, error)
	Fail(ctx context.Context, intentID int64, actorID string) (*models.PaymentIntent, error)
	AdjustBalance(ctx context.Context, accountID string, delta int64, actorID string) (*models.Account, error)
	SetAccountStatus(ctx context.Context, accountID string, status models.AccountStatus, actorID string) (*models.Account, error)
}

// AuditLister reads the audit log.
type AuditLister interface {
	List(ctx context.Context, limit int32) ([]models.AuditLogEntry, error)
}

// Authenticator exchanges signed Telegram initData for an admin token.
type Authenticator interface {
	Login(initData string) (string, time.Time, error)
}

// AdminHandler holds the dependencies for admin handlers.
type AdminHandler struct {
	Auth    Authenticator
	Store   storage.ApiStore
	Audit   AuditLister
	Service Service
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(auth Authenticator, store storage.ApiStore, audit AuditLister, service Service) *AdminHandler {
	return &AdminHandler{Auth: auth, Store: store, Audit: audit, Service: service}
}

// AdminLogin issues a token to a whitelisted admin who presents valid Mini App initData.
func (h *AdminHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req api.AdminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if req.InitData == "" {
		response.BadRequest(w, "initData is required")
		return
	}

	token, expiresAt, err := h.Auth.Login(req.InitData)
	switch {
	case errors.Is(err, middleware.ErrInvalidInitData), errors.Is(err, middleware.ErrInitDataExpired):
		slog.Log(r.Context(), slog.LevelWarn, "rejected admin login", "remote_addr", r.RemoteAddr, "error", err)
		response.JSON(w, http.StatusUnauthorized, api.Error{Error: "invalid telegram init data"})
		return
	case errors.Is(err, middleware.ErrNotAdmin):
		response.JSON(w, http.StatusForbidden, api.Error{Error: "not an admin"})
		return
	case errors.Is(err, middleware.ErrAuthDisabled):
		response.JSON(w, http.StatusServiceUnavailable, api.Error{Error: "admin login is disabled"})
		return
	case err != nil:
		response.Error(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, api.AdminLoginResponse{Success: true, Token: token, ExpiresAt: expiresAt})
}

// GetAdminMe returns the authenticated admin.
func (h *AdminHandler) GetAdminMe(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.AdminFromContext(r.Context())
	response.JSON(w, http.StatusOK, api.AdminMe{TelegramId: id, IsAdmin: true})
}

// ListUsers lists accounts, optionally filtered by status.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request, params api.ListUsersParams) {
	var status *models.AccountStatus
	if params.Status != nil {
		s := models.AccountStatus(*params.Status)
		if !s.Valid() {
			response.BadRequest(w, fmt.Sprintf("unknown account status %q", *params.Status))
			return
		}
		status = &s
	}

	accounts, err := h.Store.ListAccounts(r.Context(), status)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	apiAccounts := make([]*api.Account, len(accounts))
	for i, account := range accounts {
		apiAccounts[i] = mapping.ToApiAccount(&account)
	}
	response.JSON(w, http.StatusOK, apiAccounts)
}

// ListPayments lists the most recent payment intents.
func (h *AdminHandler) ListPayments(w http.ResponseWriter, r *http.Request, params api.ListPaymentsParams) {
	var status *models.IntentStatus
	if params.Status != nil {
		s := models.IntentStatus(*params.Status)
		if !s.Valid() {
			response.BadRequest(w, fmt.Sprintf("unknown payment status %q", *params.Status))
			return
		}
		status = &s
	}

	intents, err := h.Store.ListIntents(r.Context(), status, limitOf(params.Limit))
	if err != nil {
		response.Error(w, r, err)
		return
	}

	apiIntents := make([]*api.PaymentIntent, len(intents))
	for i, intent := range intents {
		apiIntents[i] = mapping.ToApiPaymentIntent(&intent)
	}
	response.JSON(w, http.StatusOK, apiIntents)
}

// ListLogs lists the most recent audit entries.
func (h *AdminHandler) ListLogs(w http.ResponseWriter, r *http.Request, params api.ListLogsParams) {
	entries, err := h.Audit.List(r.Context(), limitOf(params.Limit))
	if err != nil {
		response.Error(w, r, err)
		return
	}

	apiEntries := make([]*api.AuditLogEntry, len(entries))
	for i, entry := range entries {
		apiEntries[i] = mapping.ToApiAuditLogEntry(&entry)
	}
	response.JSON(w, http.StatusOK, apiEntries)
}

// GetStats summarises accounts and payments.
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Store.ListAccounts(r.Context(), nil)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	intents, err := h.Store.ListIntents(r.Context(), nil, 0)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, mapping.ToApiStats(accounts, intents))
}

// VerifyPayment settles a payment on the admin's word.
func (h *AdminHandler) VerifyPayment(w http.ResponseWriter, r *http.Request, paymentId int64) {
	outcome, err := h.Service.ManualVerify(r.Context(), paymentId, actor(r))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	h.writePayment(w, outcome.Status, outcome.Intent)
}

// RefundPayment marks a paid payment refunded.
func (h *AdminHandler) RefundPayment(w http.ResponseWriter, r *http.Request, paymentId int64) {
	intent, err := h.Service.Refund(r.Context(), paymentId, actor(r))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	h.writePayment(w, string(intent.Status), intent)
}

// FailPayment marks a pending payment failed.
func (h *AdminHandler) FailPayment(w http.ResponseWriter, r *http.Request, paymentId int64) {
	intent, err := h.Service.Fail(r.Context(), paymentId, actor(r))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	h.writePayment(w, string(intent.Status), intent)
}

// AdjustUserBalance credits or debits an account.
func (h *AdminHandler) AdjustUserBalance(w http.ResponseWriter, r *http.Request, userId string) {
	var req api.BalanceAdjustment
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	account, err := h.Service.AdjustBalance(r.Context(), userId, req.Delta, actor(r))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, api.AccountResponse{Success: true, User: mapping.ToApiAccount(account)})
}

// SetUserStatus blocks or unblocks an account.
func (h *AdminHandler) SetUserStatus(w http.ResponseWriter, r *http.Request, userId string) {
	var req api.StatusChange
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	account, err := h.Service.SetAccountStatus(r.Context(), userId, models.AccountStatus(req.Status), actor(r))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, api.AccountResponse{Success: true, User: mapping.ToApiAccount(account)})
}

func (h *AdminHandler) writePayment(w http.ResponseWriter, status string, intent *models.PaymentIntent) {
	resp := api.PaymentActionResponse{Success: true, Status: status}
	if intent != nil {
		resp.Payment = mapping.ToApiPaymentIntent(intent)
	}
	response.JSON(w, http.StatusOK, resp)
}

func actor(r *http.Request) string {
	id, _ := middleware.AdminFromContext(r.Context())
	return id
}

func limitOf(limit *int32) int32 {
	switch {
	case limit == nil || *limit <= 0:
		return defaultLimit
	case *limit > maxLimit:
		return maxLimit
	}
	return *limit
}
