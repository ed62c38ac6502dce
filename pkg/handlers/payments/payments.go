package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/chris/stars-ledger/pkg/api"
	"github.com/chris/stars-ledger/pkg/catalog"
	"github.com/chris/stars-ledger/pkg/handlers/response"
	"github.com/chris/stars-ledger/pkg/invoice"
	"github.com/chris/stars-ledger/pkg/mapping"
	"github.com/chris/stars-ledger/pkg/settlement"
	"github.com/chris/stars-ledger/pkg/storage"
)

// InvoiceIssuer creates invoices.
type InvoiceIssuer interface {
	CreateInvoice(ctx context.Context, req invoice.Request) (*invoice.Invoice, error)
}

// Simulator confirms simulated payments.
type Simulator interface {
	SimulateSuccess(ctx context.Context, intentID int64) (*settlement.Outcome, error)
}

// PaymentsHandler holds the dependencies for the public payment handlers.
type PaymentsHandler struct {
	Issuer    InvoiceIssuer
	Simulator Simulator
	Store     storage.AccountStore
	Catalog   *catalog.Catalog
}

// NewPaymentsHandler creates a new PaymentsHandler.
func NewPaymentsHandler(issuer InvoiceIssuer, simulator Simulator, store storage.AccountStore, cat *catalog.Catalog) *PaymentsHandler {
	return &PaymentsHandler{Issuer: issuer, Simulator: simulator, Store: store, Catalog: cat}
}

// CreateInvoice handles the logic for issuing an invoice for a catalog package.
func (h *PaymentsHandler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req api.CreateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	displayName := ""
	if req.Username != nil {
		displayName = strings.TrimSpace(*req.Username)
	}

	inv, err := h.Issuer.CreateInvoice(r.Context(), invoice.Request{
		ExternalUserID: req.TelegramId.String(),
		PackageKey:     req.PackageKey,
		DisplayName:    displayName,
	})
	if err != nil {
		response.Error(w, r, err)
		return
	}

	resp := api.CreateInvoiceResponse{
		Success:     true,
		Mode:        string(inv.Mode),
		PaymentId:   inv.IntentID,
		StarsAmount: inv.Amount,
	}
	if inv.PayableLink != "" {
		resp.InvoiceLink = &inv.PayableLink
	}
	if inv.SimulateEndpoint != "" {
		resp.SimulateEndpoint = &inv.SimulateEndpoint
	}
	response.JSON(w, http.StatusCreated, resp)
}

// ListPackages returns the purchasable packages.
func (h *PaymentsHandler) ListPackages(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, api.PackagesResponse{
		Success:  true,
		Packages: mapping.ToApiPackages(h.Catalog.List()),
	})
}

// GetBalance returns an account's balance, creating the account on first sight.
func (h *PaymentsHandler) GetBalance(w http.ResponseWriter, r *http.Request, telegramId string) {
	account, err := h.Store.GetOrCreateAccount(r.Context(), telegramId, "")
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, mapping.ToApiBalance(account))
}

// SimulateSuccess confirms a simulated payment.
func (h *PaymentsHandler) SimulateSuccess(w http.ResponseWriter, r *http.Request) {
	var req api.SimulateSuccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if req.PaymentId <= 0 {
		response.BadRequest(w, "paymentId is required")
		return
	}

	outcome, err := h.Simulator.SimulateSuccess(r.Context(), req.PaymentId)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	resp := api.SimulateSuccessResponse{
		Success:   true,
		Status:    outcome.Status,
		PaymentId: req.PaymentId,
	}
	if outcome.Intent != nil {
		if account, err := h.Store.GetAccount(r.Context(), outcome.Intent.AccountID); err == nil {
			resp.BalanceStars = account.Balance
		}
	}
	response.JSON(w, http.StatusOK, resp)
}
