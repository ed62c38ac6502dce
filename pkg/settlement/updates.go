package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chris/stars-ledger/pkg/models"
	"github.com/chris/stars-ledger/pkg/payload"
	"github.com/chris/stars-ledger/pkg/provider/telegram"
	"github.com/chris/stars-ledger/pkg/storage"
)

const (
	buyStarsCommand = "/buy_stars"
	buyStarsReply   = "Open the Mini App and tap a Buy Stars package to complete payment."
	checkoutRefusal = "This payment is no longer available. Please start a new purchase."
)

// HandleUpdate dispatches a Bot API update.
func (p *Processor) HandleUpdate(ctx context.Context, update telegram.Update) (Result, error) {
	if q := update.PreCheckoutQuery; q != nil {
		return p.answerPreCheckout(ctx, q)
	}

	msg := update.Message
	if msg == nil {
		return Result{Type: TypeUnknown, Status: StatusIgnored}, nil
	}

	if strings.HasPrefix(msg.Text, buyStarsCommand) {
		if msg.Chat != nil && p.provider != nil {
			if err := p.provider.SendMessage(ctx, msg.Chat.ID, buyStarsReply); err != nil {
				slog.Log(ctx, slog.LevelWarn, "failed to reply to buy_stars command", "chat_id", msg.Chat.ID, "error", err)
			}
		}
		return Result{Type: TypeCommand, Status: StatusBuyStarsSent}, nil
	}

	if sp := msg.SuccessfulPayment; sp != nil {
		return p.HandleConfirmation(ctx, Confirmation{
			Payload:   sp.InvoicePayload,
			Reference: sp.TelegramPaymentChargeID,
			Amount:    sp.TotalAmount,
			Currency:  sp.Currency,
		})
	}

	if msg.Invoice != nil {
		return Result{Type: TypeInvoice, Status: StatusPending}, nil
	}

	return Result{Type: TypeUnknown, Status: StatusIgnored}, nil
}

// answerPreCheckout approves a checkout only while its intent is still pending and unchanged.
func (p *Processor) answerPreCheckout(ctx context.Context, q *telegram.PreCheckoutQuery) (Result, error) {
	result := Result{Type: TypePreCheckoutQuery, Status: StatusAnswered}
	if p.provider == nil {
		return result, errors.New("no payment provider configured to answer pre-checkout queries")
	}

	intent, reason, err := p.checkoutIntent(ctx, q)
	if err != nil {
		return result, err
	}
	if intent != nil {
		result.IntentID = intent.ID
	}

	approve := reason == ""
	message := ""
	if !approve {
		result.Status = StatusRejected
		message = checkoutRefusal
		slog.Log(ctx, slog.LevelWarn, "rejecting pre-checkout query", "query_id", q.ID, "reason", reason)
	}

	if err := p.provider.AnswerPreCheckoutQuery(ctx, q.ID, approve, message); err != nil {
		return result, fmt.Errorf("failed to answer pre-checkout query: %w", err)
	}
	return result, nil
}

// checkoutIntent returns the intent of a query and, if it must be refused, why.
func (p *Processor) checkoutIntent(ctx context.Context, q *telegram.PreCheckoutQuery) (*models.PaymentIntent, string, error) {
	decoded, err := payload.Decode(q.InvoicePayload)
	if err != nil {
		return nil, "foreign payload", nil
	}

	intent, err := p.store.FindIntentByID(ctx, decoded.IntentID)
	if errors.Is(err, storage.ErrIntentNotFound) {
		return nil, "unknown intent", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to look up payment intent: %w", err)
	}

	switch {
	case intent.Status != models.PENDING:
		return intent, "intent is " + string(intent.Status), nil
	case intent.AccountID != decoded.ExternalAccountID:
		return intent, "account mismatch", nil
	case q.TotalAmount != intent.Amount || q.Currency != intent.Currency:
		return intent, "amount mismatch", nil
	}
	return intent, "", nil
}
