package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/chris/stars-ledger/pkg/api"
	"github.com/chris/stars-ledger/pkg/handlers/response"
	"github.com/chris/stars-ledger/pkg/mapping"
	"github.com/chris/stars-ledger/pkg/provider/telegram"
	"github.com/chris/stars-ledger/pkg/scheduler"
	"github.com/chris/stars-ledger/pkg/settlement"
)

// SecretHeader carries the secret registered with setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// UpdateHandler processes a Bot API update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update telegram.Update) (settlement.Result, error)
}

// WebhookHandler receives Bot API updates.
type WebhookHandler struct {
	Processor UpdateHandler
	Scheduler scheduler.Scheduler
	Secret    string
}

// NewWebhookHandler creates a new WebhookHandler. With a nil scheduler updates are processed inline.
func NewWebhookHandler(processor UpdateHandler, s scheduler.Scheduler, secret string) *WebhookHandler {
	return &WebhookHandler{Processor: processor, Scheduler: s, Secret: secret}
}

// TelegramWebhook acknowledges every update whose outcome is final.
// Only infrastructure failures get a non-2xx status so the provider redelivers.
func (h *WebhookHandler) TelegramWebhook(w http.ResponseWriter, r *http.Request) {
	if h.Secret != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(SecretHeader)), []byte(h.Secret)) != 1 {
		slog.Log(r.Context(), slog.LevelWarn, "webhook called with wrong secret", "remote_addr", r.RemoteAddr)
		response.JSON(w, http.StatusUnauthorized, api.Error{Error: "invalid webhook secret"})
		return
	}

	var update telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		// A malformed body will not get better on redelivery.
		slog.Log(r.Context(), slog.LevelWarn, "ignoring undecodable webhook body", "error", err)
		response.JSON(w, http.StatusOK, api.WebhookResponse{
			Success: true,
			Result:  mapping.ToApiWebhookResult(settlement.Result{Type: settlement.TypeUnknown, Status: settlement.StatusIgnored}),
		})
		return
	}

	if h.Scheduler != nil {
		if err := h.Scheduler.EnqueueUpdate(r.Context(), &update); err != nil {
			slog.Log(r.Context(), slog.LevelError, "failed to enqueue update", "update_id", update.UpdateID, "error", err)
			response.Error(w, r, err)
			return
		}
		response.JSON(w, http.StatusOK, api.WebhookResponse{Success: true, Queued: true})
		return
	}

	result, err := h.Processor.HandleUpdate(r.Context(), update)
	if err != nil {
		slog.Log(r.Context(), slog.LevelError, "failed to handle update", "update_id", update.UpdateID, "error", err)
		response.Error(w, r, err)
		return
	}

	slog.Log(r.Context(), slog.LevelInfo, "update handled", "update_id", update.UpdateID, "type", result.Type, "status", result.Status)
	response.JSON(w, http.StatusOK, api.WebhookResponse{Success: true, Result: mapping.ToApiWebhookResult(result)})
}
