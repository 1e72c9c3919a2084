package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/handypro/marketplace-server/internal/errors"
	"github.com/handypro/marketplace-server/internal/middleware"
	"github.com/handypro/marketplace-server/internal/service"
)

const stripeSignatureHeader = "Stripe-Signature"

type PaymentSyncer interface {
	SyncPaymentIntent(ctx context.Context, offerID, userID, paymentIntentID string) (*service.SyncResult, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) (*service.WebhookResult, error)
	ReconcileStale(ctx context.Context) (service.ReconcileStats, error)
}

type PaymentHandler struct {
	payments PaymentSyncer
}

func NewPaymentHandler(payments PaymentSyncer) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// Routes are mounted under /api behind authentication.
func (h *PaymentHandler) Routes(r chi.Router) {
	r.Post("/offers/{id}/sync-payment-intent", h.SyncPaymentIntent)
}

type syncPaymentRequest struct {
	PaymentIntentID string `json:"paymentIntentId" validate:"omitempty,startswith=pi_,max=255"`
}

func (h *PaymentHandler) SyncPaymentIntent(w http.ResponseWriter, r *http.Request) {
	offerID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req syncPaymentRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.payments.SyncPaymentIntent(r.Context(), offerID, middleware.GetUserID(r.Context()), req.PaymentIntentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":              true,
		"offerId":         res.OfferID,
		"status":          res.Status,
		"finalized":       res.Finalized,
		"paymentIntentId": res.PaymentIntentID,
	})
}

// Webhook receives processor events. The raw body is needed for signature verification.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, r, apperrors.ValidationError("Unable to read request body"))
		return
	}

	res, err := h.payments.HandleWebhook(r.Context(), payload, r.Header.Get(stripeSignatureHeader))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"received": true, "handled": res.Handled})
}

func (h *PaymentHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	stats, err := h.payments.ReconcileStale(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "stats": stats})
}
