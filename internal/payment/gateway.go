// Package payment wraps the hosted checkout processor behind a small interface.
package payment

import (
	"context"
	"errors"

	"github.com/handypro/marketplace-server/internal/billing"
	"github.com/handypro/marketplace-server/internal/model"
)

// ErrInvalidSignature is returned when a webhook payload fails verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

type CheckoutParams struct {
	OfferID            string
	ConversationID     string
	Title              string
	Currency           string
	Quote              billing.Quote
	DestinationAccount string
	CustomerEmail      string
	SuccessURL         string
	CancelURL          string
	IdempotencyKey     string
}

type CheckoutSession struct {
	ID              string
	URL             string
	Status          string
	PaymentStatus   string
	PaymentIntentID string
	OfferID         string
}

// Paid reports whether the processor collected the payment.
func (s *CheckoutSession) Paid() bool {
	return s.PaymentStatus == "paid" || s.PaymentStatus == "no_payment_required"
}

func (s *CheckoutSession) Expired() bool {
	return s.Status == "expired"
}

type PaymentIntent struct {
	ID      string
	Status  string
	Amount  model.Money
	OfferID string
}

func (p *PaymentIntent) Succeeded() bool {
	return p.Status == "succeeded"
}

// WebhookEvent is the subset of a processor event needed to finalize an offer.
type WebhookEvent struct {
	ID              string
	Type            string
	OfferID         string
	PaymentIntentID string
	SessionID       string
	Paid            bool
}

type Gateway interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error)
	GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error)
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}
