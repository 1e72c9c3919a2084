package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/handypro/marketplace-server/internal/audit"
	"github.com/handypro/marketplace-server/internal/cache"
	apperrors "github.com/handypro/marketplace-server/internal/errors"
	"github.com/handypro/marketplace-server/internal/model"
	"github.com/handypro/marketplace-server/internal/payment"
	"github.com/handypro/marketplace-server/internal/repository"
)

const (
	defaultReconcileBatch       = 50
	defaultReconcileConcurrency = 4
)

type OfferFinalizer interface {
	FinalizeOfferPayment(ctx context.Context, offerID string, paymentRef *string) FinalizeResult
}

type SyncResult struct {
	OfferID         string            `json:"offerId"`
	Status          model.OfferStatus `json:"status"`
	Finalized       bool              `json:"finalized"`
	PaymentIntentID string            `json:"paymentIntentId,omitempty"`
}

type WebhookResult struct {
	EventID   string `json:"eventId"`
	Handled   bool   `json:"handled"`
	Finalized bool   `json:"finalized"`
}

type ReconcileStats struct {
	Checked   int `json:"checked"`
	Finalized int `json:"finalized"`
	Expired   int `json:"expired"`
	Pending   int `json:"pending"`
	Errors    int `json:"errors"`
}

type PaymentSyncDeps struct {
	Offers     repository.OfferRepository
	Gateway    payment.Gateway
	Finalizer  OfferFinalizer
	Views      ViewInvalidator
	StaleAfter time.Duration
	BatchSize  int
}

// PaymentSyncService reconciles offers with the payment processor's view of their payments.
type PaymentSyncService struct {
	PaymentSyncDeps
	now func() time.Time
}

func NewPaymentSyncService(deps PaymentSyncDeps) *PaymentSyncService {
	if deps.BatchSize <= 0 {
		deps.BatchSize = defaultReconcileBatch
	}
	return &PaymentSyncService{PaymentSyncDeps: deps, now: time.Now}
}

// SyncPaymentIntent checks the processor for a payment on offerID and finalizes it when collected.
// Already-paid offers are finalized again so that a partial earlier run completes.
func (s *PaymentSyncService) SyncPaymentIntent(ctx context.Context, offerID, userID, paymentIntentID string) (*SyncResult, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("Authentication required")
	}
	if s.Gateway == nil {
		return nil, apperrors.ServerMisconfigured("payment processor is not configured")
	}

	offer, err := s.Offers.FindByID(ctx, offerID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if offer == nil {
		return nil, apperrors.NotFound("Offer")
	}
	if !offer.IsParticipant(userID) {
		return nil, apperrors.Forbidden("Not a participant of this offer")
	}

	switch offer.Status {
	case model.OfferStatusPaid:
		res := s.Finalizer.FinalizeOfferPayment(ctx, offer.ID, offer.PaymentIntentID)
		return &SyncResult{OfferID: offer.ID, Status: model.OfferStatusPaid, Finalized: res.OK, PaymentIntentID: deref(offer.PaymentIntentID)}, nil
	case model.OfferStatusAccepted:
	default:
		return &SyncResult{OfferID: offer.ID, Status: offer.Status}, nil
	}

	paid, ref, err := s.lookupPayment(ctx, offer, paymentIntentID)
	if err != nil {
		return nil, err
	}
	if !paid {
		return &SyncResult{OfferID: offer.ID, Status: offer.Status, PaymentIntentID: ref}, nil
	}

	res := s.Finalizer.FinalizeOfferPayment(ctx, offer.ID, optional(ref))
	if !res.OK {
		return nil, apperrors.Internal("Payment was received but the offer could not be updated")
	}
	return &SyncResult{OfferID: offer.ID, Status: model.OfferStatusPaid, Finalized: true, PaymentIntentID: ref}, nil
}

// lookupPayment resolves payment state from the given intent, else the stored checkout
// session, else the stored intent.
func (s *PaymentSyncService) lookupPayment(ctx context.Context, offer *model.Offer, paymentIntentID string) (bool, string, error) {
	if paymentIntentID == "" && offer.CheckoutSessionID != nil {
		session, err := s.Gateway.GetCheckoutSession(ctx, *offer.CheckoutSessionID)
		if err != nil {
			return false, "", apperrors.External("payment processor", err)
		}
		if session.OfferID != "" && session.OfferID != offer.ID {
			return false, "", apperrors.InvalidState("Checkout session belongs to another offer")
		}
		return session.Paid(), session.PaymentIntentID, nil
	}

	if paymentIntentID == "" {
		paymentIntentID = deref(offer.PaymentIntentID)
	}
	if paymentIntentID == "" {
		return false, "", nil
	}

	pi, err := s.Gateway.GetPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		return false, "", apperrors.External("payment processor", err)
	}
	if pi.OfferID != "" && pi.OfferID != offer.ID {
		return false, "", apperrors.InvalidInput("paymentIntentId", "belongs to another offer")
	}
	return pi.Succeeded(), pi.ID, nil
}

// HandleWebhook verifies and applies a processor event. Events that do not confirm a
// payment are acknowledged without side effects.
func (s *PaymentSyncService) HandleWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	if s.Gateway == nil {
		return nil, apperrors.ServerMisconfigured("payment processor is not configured")
	}

	event, err := s.Gateway.ParseWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			audit.Log(ctx, audit.Event{Type: audit.EventWebhookInvalid})
			return nil, apperrors.InvalidInput("signature", "verification failed")
		}
		// Redelivery cannot fix a signed event we fail to decode, so it is acknowledged.
		log.Error().Err(err).Msg("webhook event could not be decoded")
		return &WebhookResult{}, nil
	}

	result := &WebhookResult{EventID: event.ID}
	switch event.Type {
	case payment.EventCheckoutCompleted, payment.EventCheckoutAsyncPaymentPassed, payment.EventPaymentIntentSucceeded:
	default:
		return result, nil
	}
	if !event.Paid || event.OfferID == "" {
		log.Debug().Str("eventId", event.ID).Str("type", event.Type).Msg("webhook event without collected payment")
		return result, nil
	}

	result.Handled = true
	res := s.Finalizer.FinalizeOfferPayment(ctx, event.OfferID, optional(event.PaymentIntentID))
	result.Finalized = res.OK
	if !res.OK {
		log.Warn().
			Str("eventId", event.ID).
			Str("offerId", event.OfferID).
			Msg("webhook finalization incomplete, left for reconciliation")
	}
	return result, nil
}

// ReconcileStale finalizes paid checkouts whose webhook never arrived and releases
// offers whose checkout session expired.
func (s *PaymentSyncService) ReconcileStale(ctx context.Context) (ReconcileStats, error) {
	var stats ReconcileStats
	if s.Gateway == nil {
		return stats, apperrors.ServerMisconfigured("payment processor is not configured")
	}

	offers, err := s.Offers.FindStaleCheckouts(ctx, s.now().Add(-s.StaleAfter), s.BatchSize)
	if err != nil {
		return stats, apperrors.Database(err)
	}

	var mu sync.Mutex
	record := func(fn func(*ReconcileStats)) {
		mu.Lock()
		fn(&stats)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultReconcileConcurrency)
	for i := range offers {
		offer := &offers[i]
		g.Go(func() error {
			outcome := s.reconcileOne(gctx, offer)
			record(func(st *ReconcileStats) {
				st.Checked++
				switch outcome {
				case reconcileFinalized:
					st.Finalized++
				case reconcileExpired:
					st.Expired++
				case reconcilePending:
					st.Pending++
				default:
					st.Errors++
				}
			})
			return nil
		})
	}
	_ = g.Wait()

	if stats.Checked > 0 {
		log.Info().
			Int("checked", stats.Checked).
			Int("finalized", stats.Finalized).
			Int("expired", stats.Expired).
			Int("pending", stats.Pending).
			Int("errors", stats.Errors).
			Msg("payment reconciliation completed")
	}
	return stats, nil
}

type reconcileOutcome int

const (
	reconcileFailed reconcileOutcome = iota
	reconcileFinalized
	reconcileExpired
	reconcilePending
)

func (s *PaymentSyncService) reconcileOne(ctx context.Context, offer *model.Offer) reconcileOutcome {
	if offer.CheckoutSessionID == nil {
		return reconcilePending
	}
	logger := log.With().Str("offerId", offer.ID).Str("sessionId", *offer.CheckoutSessionID).Logger()

	session, err := s.Gateway.GetCheckoutSession(ctx, *offer.CheckoutSessionID)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to fetch checkout session")
		return reconcileFailed
	}

	switch {
	case session.Paid():
		if res := s.Finalizer.FinalizeOfferPayment(ctx, offer.ID, optional(session.PaymentIntentID)); !res.OK {
			return reconcileFailed
		}
		return reconcileFinalized

	case session.Expired():
		released, err := s.Offers.ExpireCheckout(ctx, offer.ID, session.ID)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to release expired checkout")
			return reconcileFailed
		}
		if !released {
			return reconcilePending
		}
		if err := s.Views.Invalidate(ctx, cache.ConversationOffersPath(offer.ConversationID), cache.OfferPath(offer.ID)); err != nil {
			logger.Warn().Err(err).Msg("cache invalidation failed")
		}
		logger.Info().Msg("expired checkout released, offer is pending again")
		return reconcileExpired
	}
	return reconcilePending
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
