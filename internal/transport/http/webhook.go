package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/stripe/stripe-go/v81"

	"github.com/AlexMacD6/ConsignCrew-sub005/internal/app"
	"github.com/AlexMacD6/ConsignCrew-sub005/internal/domain"
	"github.com/AlexMacD6/ConsignCrew-sub005/internal/logkey"
)

const maxWebhookBodyBytes = int64(65536)

// PaymentSettler is the minimal interface needed to settle provider events.
// Both operations key on the session so stale events for superseded sessions
// resolve to no order and fall through as no-ops.
type PaymentSettler interface {
	MarkPaid(ctx context.Context, sessionID string) (domain.Order, error)
	CancelBySession(ctx context.Context, sessionID, actor string) (bool, error)
}

// HandleStripeWebhook processes checkout session events from the payment
// provider. The handler always acknowledges events it cannot act on:
// returning an error would only make the provider retry a payload that will
// never become actionable.
func HandleStripeWebhook(svc PaymentSettler, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)

		var event stripe.Event
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid event payload")
			return
		}

		switch event.Type {
		case "checkout.session.completed":
			var session stripe.CheckoutSession
			if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid session payload")
				return
			}

			order, err := svc.MarkPaid(r.Context(), session.ID)
			switch {
			case err == nil:
				logger.Info("checkout session settled",
					slog.String(logkey.SessionID, session.ID),
					slog.String(logkey.OrderID, order.ID),
				)
			case errors.Is(err, domain.ErrOrderNotFound):
				logger.Warn("settlement for unknown session",
					slog.String(logkey.SessionID, session.ID),
				)
			case errors.Is(err, domain.ErrCheckoutNotValid):
				// Payment landed after the order was already cancelled. The
				// charge needs a manual refund; acknowledging stops retries.
				logger.Warn("payment received for unpayable order",
					slog.String(logkey.SessionID, session.ID),
					slog.String(logkey.OrderID, session.Metadata["order_id"]),
				)
			default:
				logger.Error("settle checkout session",
					slog.String(logkey.SessionID, session.ID),
					slog.String(logkey.Error, err.Error()),
				)
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				return
			}

		case "checkout.session.expired":
			var session stripe.CheckoutSession
			if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid session payload")
				return
			}

			cancelled, err := svc.CancelBySession(r.Context(), session.ID, app.ActorProvider)
			if err != nil {
				logger.Error("cancel order for expired session",
					slog.String(logkey.SessionID, session.ID),
					slog.String(logkey.Error, err.Error()),
				)
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				return
			}
			if cancelled {
				logger.Info("order cancelled for expired session",
					slog.String(logkey.OrderID, session.Metadata["order_id"]),
					slog.String(logkey.SessionID, session.ID),
				)
			}

		default:
			logger.Info("unhandled provider event",
				slog.String("event_type", string(event.Type)),
			)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]bool{"received": true})
	}
}
