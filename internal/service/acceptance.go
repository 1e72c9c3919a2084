package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/handypro/marketplace-server/internal/audit"
	"github.com/handypro/marketplace-server/internal/billing"
	"github.com/handypro/marketplace-server/internal/cache"
	apperrors "github.com/handypro/marketplace-server/internal/errors"
	"github.com/handypro/marketplace-server/internal/model"
	"github.com/handypro/marketplace-server/internal/payment"
	"github.com/handypro/marketplace-server/internal/repository"
)

// AcceptMode selects how the pending → accepted transition is executed.
type AcceptMode string

const (
	// AcceptModeAuto uses the stored function and falls back to the conditional update when it is missing.
	AcceptModeAuto        AcceptMode = "auto"
	AcceptModeRPC         AcceptMode = "rpc"
	AcceptModeConditional AcceptMode = "conditional"
)

func (m AcceptMode) Valid() bool {
	switch m {
	case AcceptModeAuto, AcceptModeRPC, AcceptModeConditional:
		return true
	}
	return false
}

const notifyTimeout = 10 * time.Second

type AcceptResult struct {
	Offer       *model.Offer  `json:"offer"`
	CheckoutURL string        `json:"checkoutUrl"`
	Quote       billing.Quote `json:"quote"`
}

type AcceptanceDeps struct {
	Offers        repository.OfferRepository
	Conversations repository.ConversationRepository
	Profiles      repository.ProfileRepository
	Gateway       payment.Gateway
	Timeline      *Timeline
	Views         ViewInvalidator
	Mode          AcceptMode
	PublicBaseURL string
}

// AcceptanceService moves offers from pending to accepted and opens a hosted checkout.
type AcceptanceService struct {
	AcceptanceDeps
	background func(func())
}

func NewAcceptanceService(deps AcceptanceDeps) *AcceptanceService {
	if !deps.Mode.Valid() {
		deps.Mode = AcceptModeAuto
	}
	return &AcceptanceService{
		AcceptanceDeps: deps,
		background:     func(fn func()) { go fn() },
	}
}

// AcceptOffer accepts offerID on behalf of the offer's professional and returns the checkout URL.
func (s *AcceptanceService) AcceptOffer(ctx context.Context, offerID, actingUserID string) (*AcceptResult, error) {
	if actingUserID == "" {
		return nil, apperrors.Unauthorized("Authentication required")
	}
	if s.Gateway == nil {
		return nil, apperrors.ServerMisconfigured("payment processor is not configured")
	}

	offer, err := s.transition(ctx, offerID, actingUserID)
	if err != nil {
		audit.Log(ctx, audit.Event{
			Type:    audit.EventOfferAcceptDenied,
			UserID:  actingUserID,
			OfferID: offerID,
			Details: map[string]interface{}{"code": string(apperrors.GetCode(err))},
		})
		return nil, err
	}

	quote := billing.Compute(offer.Amount)
	session, err := s.Gateway.CreateCheckoutSession(ctx, s.checkoutParams(ctx, offer, quote))
	if err != nil {
		log.Error().Err(err).Str("offerId", offer.ID).Msg("checkout session creation failed, reverting acceptance")
		if _, revertErr := s.Offers.RevertAcceptance(context.WithoutCancel(ctx), offer.ID); revertErr != nil {
			log.Error().Err(revertErr).Str("offerId", offer.ID).Msg("failed to revert acceptance")
		}
		return nil, apperrors.CheckoutFailed(err)
	}

	updated, err := s.Offers.SetCheckout(ctx, offer.ID, session.ID, session.URL)
	if err != nil {
		return nil, apperrors.UpdateFailed(err)
	}
	if updated == nil {
		return nil, apperrors.UpdateNoRows()
	}

	if err := s.Views.Invalidate(ctx, cache.ConversationOffersPath(updated.ConversationID), cache.OfferPath(updated.ID)); err != nil {
		log.Warn().Err(err).Str("offerId", updated.ID).Msg("cache invalidation failed")
	}
	s.notifyAccepted(ctx, updated)

	audit.Log(ctx, audit.Event{
		Type:    audit.EventOfferAccepted,
		UserID:  actingUserID,
		OfferID: updated.ID,
		Details: map[string]interface{}{"total": quote.Total.String(), "mode": string(s.Mode)},
	})

	return &AcceptResult{Offer: updated, CheckoutURL: session.URL, Quote: quote}, nil
}

// AcceptInConversation accepts the single open offer of a conversation.
func (s *AcceptanceService) AcceptInConversation(ctx context.Context, conversationID, actingUserID string) (*AcceptResult, error) {
	if actingUserID == "" {
		return nil, apperrors.Unauthorized("Authentication required")
	}
	if _, err := s.participantConversation(ctx, conversationID, actingUserID); err != nil {
		return nil, err
	}

	offer, err := s.Offers.FindOpenByConversation(ctx, conversationID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if offer == nil {
		return nil, apperrors.NotFound("Pending offer")
	}
	return s.AcceptOffer(ctx, offer.ID, actingUserID)
}

// ListCandidates returns the conversation's offers without changing anything.
func (s *AcceptanceService) ListCandidates(ctx context.Context, conversationID, userID string) ([]model.Offer, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("Authentication required")
	}
	if _, err := s.participantConversation(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	offers, err := s.Offers.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return offers, nil
}

func (s *AcceptanceService) participantConversation(ctx context.Context, conversationID, userID string) (*model.Conversation, error) {
	conv, err := s.Conversations.FindByID(ctx, conversationID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if conv == nil {
		return nil, apperrors.NotFound("Conversation")
	}
	if !conv.IsParticipant(userID) {
		return nil, apperrors.Forbidden("Not a participant of this conversation")
	}
	return conv, nil
}

func (s *AcceptanceService) transition(ctx context.Context, offerID, actorID string) (*model.Offer, error) {
	if s.Mode != AcceptModeConditional {
		code, err := s.Offers.AcceptAtomic(ctx, offerID, actorID)
		switch {
		case err == nil:
			if appErr := acceptCodeError(code); appErr != nil {
				return nil, appErr
			}
			offer, err := s.Offers.FindByID(ctx, offerID)
			if err != nil {
				return nil, apperrors.Database(err)
			}
			if offer == nil {
				return nil, apperrors.NotFound("Offer")
			}
			return offer, nil

		case errors.Is(err, repository.ErrAtomicAcceptUnavailable) && s.Mode == AcceptModeAuto:
			log.Warn().Str("offerId", offerID).Msg("accept_offer function unavailable, using conditional update")

		default:
			return nil, apperrors.UpdateFailed(err)
		}
	}
	return s.acceptConditional(ctx, offerID, actorID)
}

func (s *AcceptanceService) acceptConditional(ctx context.Context, offerID, actorID string) (*model.Offer, error) {
	offer, err := s.Offers.FindByID(ctx, offerID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if err := checkAcceptable(offer, actorID); err != nil {
		return nil, err
	}

	pro, err := s.Profiles.FindByID(ctx, actorID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if pro == nil || !pro.HasPayoutAccount() {
		return nil, apperrors.BankAccountRequired()
	}

	accepted, err := s.Offers.AcceptConditional(ctx, offerID, actorID)
	if err != nil {
		return nil, apperrors.UpdateFailed(err)
	}
	if accepted != nil {
		return accepted, nil
	}

	// Lost the race or the offer changed underneath; report what it is now.
	current, err := s.Offers.FindByID(ctx, offerID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if err := checkAcceptable(current, actorID); err != nil {
		return nil, err
	}
	return nil, apperrors.UpdateNoRows()
}

func checkAcceptable(offer *model.Offer, actorID string) error {
	if offer == nil {
		return apperrors.NotFound("Offer")
	}
	if offer.ProfessionalID != actorID {
		return apperrors.Forbidden("Only the offer's professional can accept it")
	}
	if !offer.Status.IsOpen() {
		return apperrors.InvalidState(fmt.Sprintf("Offer is %s", offer.Status))
	}
	return nil
}

func acceptCodeError(code repository.AcceptCode) error {
	switch code {
	case repository.AcceptCodeOK:
		return nil
	case repository.AcceptCodeOfferNotFound:
		return apperrors.NotFound("Offer")
	case repository.AcceptCodeForbidden:
		return apperrors.Forbidden("Only the offer's professional can accept it")
	case repository.AcceptCodeInvalidState:
		return apperrors.InvalidState("Offer is no longer pending")
	case repository.AcceptCodeBankAccountRequired:
		return apperrors.BankAccountRequired()
	default:
		return apperrors.UpdateFailed(fmt.Errorf("unexpected accept code %q", code))
	}
}

func (s *AcceptanceService) checkoutParams(ctx context.Context, offer *model.Offer, quote billing.Quote) payment.CheckoutParams {
	params := payment.CheckoutParams{
		OfferID:        offer.ID,
		ConversationID: offer.ConversationID,
		Title:          offer.Title,
		Currency:       offer.Currency,
		Quote:          quote,
		SuccessURL:     s.returnURL(offer, "success"),
		CancelURL:      s.returnURL(offer, "cancelled"),
		IdempotencyKey: checkoutIdempotencyKey(offer),
	}

	if pro, err := s.Profiles.FindByID(ctx, offer.ProfessionalID); err == nil && pro != nil && pro.StripeAccountID != nil {
		params.DestinationAccount = *pro.StripeAccountID
	}
	if client, err := s.Profiles.FindByID(ctx, offer.ClientID); err == nil && client != nil && client.Email != nil {
		params.CustomerEmail = *client.Email
	}
	return params
}

func (s *AcceptanceService) returnURL(offer *model.Offer, outcome string) string {
	q := url.Values{}
	q.Set("payment", outcome)
	q.Set("offer", offer.ID)
	return fmt.Sprintf("%s/conversations/%s?%s", s.PublicBaseURL, offer.ConversationID, q.Encode())
}

// checkoutIdempotencyKey is stable for one acceptance and changes if the offer is accepted again.
func checkoutIdempotencyKey(offer *model.Offer) string {
	var acceptedAt int64
	if offer.AcceptedAt != nil {
		acceptedAt = offer.AcceptedAt.UnixNano()
	}
	name := fmt.Sprintf("offer-checkout:%s:%d", offer.ID, acceptedAt)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

func (s *AcceptanceService) notifyAccepted(ctx context.Context, offer *model.Offer) {
	bgCtx := context.WithoutCancel(ctx)
	s.background(func() {
		ctx, cancel := context.WithTimeout(bgCtx, notifyTimeout)
		defer cancel()

		body := fmt.Sprintf("Offer accepted: %s. Waiting for payment.", offer.Title)
		if _, err := s.Timeline.PostOfferStatus(ctx, offer, model.OfferStatusAccepted, offer.ProfessionalID, body); err != nil {
			log.Warn().Err(err).Str("offerId", offer.ID).Msg("offer accepted notification failed")
		}
	})
}
