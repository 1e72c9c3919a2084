package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/handypro/marketplace-server/internal/audit"
	"github.com/handypro/marketplace-server/internal/billing"
	"github.com/handypro/marketplace-server/internal/cache"
	"github.com/handypro/marketplace-server/internal/database"
	apperrors "github.com/handypro/marketplace-server/internal/errors"
	"github.com/handypro/marketplace-server/internal/model"
	"github.com/handypro/marketplace-server/internal/repository"
)

// ViewStore is a cache of rendered JSON views keyed by page path.
type ViewStore interface {
	ViewInvalidator
	Get(ctx context.Context, path string) ([]byte, bool)
	Set(ctx context.Context, path string, data []byte)
}

type CreateOfferInput struct {
	Title       string
	Description *string
	Amount      model.Money
	Currency    string
	ServiceDate *time.Time
	ServiceTime *string
}

type OfferService struct {
	offers          repository.OfferRepository
	conversations   repository.ConversationRepository
	timeline        *Timeline
	views           ViewStore
	defaultCurrency string
}

func NewOfferService(
	offers repository.OfferRepository,
	conversations repository.ConversationRepository,
	timeline *Timeline,
	views ViewStore,
	defaultCurrency string,
) *OfferService {
	return &OfferService{
		offers:          offers,
		conversations:   conversations,
		timeline:        timeline,
		views:           views,
		defaultCurrency: defaultCurrency,
	}
}

func (s *OfferService) conversationFor(ctx context.Context, conversationID, userID string) (*model.Conversation, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("Authentication required")
	}
	conv, err := s.conversations.FindByID(ctx, conversationID)
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

// Create proposes a new offer in a conversation. Either participant may propose.
func (s *OfferService) Create(ctx context.Context, conversationID, userID string, in CreateOfferInput) (*model.Offer, error) {
	conv, err := s.conversationFor(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperrors.InvalidInput("title", "must not be empty")
	}
	if in.Amount <= 0 {
		return nil, apperrors.InvalidInput("amount", "must be greater than zero")
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = s.defaultCurrency
	}
	if in.ServiceTime != nil {
		if _, err := time.Parse("15:04", *in.ServiceTime); err != nil {
			return nil, apperrors.InvalidInput("serviceTime", "must be HH:MM")
		}
	}

	offer, err := s.offers.Create(ctx, model.CreateOfferParams{
		ConversationID: conv.ID,
		ClientID:       conv.ClientID,
		ProfessionalID: conv.ProfessionalID,
		CreatedBy:      userID,
		Title:          title,
		Description:    in.Description,
		Amount:         in.Amount,
		Currency:       currency,
		ServiceDate:    in.ServiceDate,
		ServiceTime:    in.ServiceTime,
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperrors.Conflict("This conversation already has an open offer")
		}
		return nil, apperrors.Database(err)
	}

	s.invalidate(ctx, offer)
	body := fmt.Sprintf("New offer: %s for %s %s.", offer.Title, offer.Amount, offer.Currency)
	if _, err := s.timeline.PostOfferStatus(ctx, offer, offer.Status, userID, body); err != nil {
		log.Warn().Err(err).Str("offerId", offer.ID).Msg("offer created message failed")
	}

	audit.Log(ctx, audit.Event{
		Type:    audit.EventOfferCreated,
		UserID:  userID,
		OfferID: offer.ID,
		Details: map[string]interface{}{"amount": offer.Amount.String(), "currency": offer.Currency},
	})
	return offer, nil
}

// Cancel withdraws an open offer. Only participants may cancel.
func (s *OfferService) Cancel(ctx context.Context, offerID, userID string) (*model.Offer, error) {
	offer, err := s.participantOffer(ctx, offerID, userID)
	if err != nil {
		return nil, err
	}
	if !offer.Status.IsOpen() {
		return nil, apperrors.InvalidState(fmt.Sprintf("Offer is %s", offer.Status))
	}

	cancelled, err := s.offers.Cancel(ctx, offerID)
	if err != nil {
		return nil, apperrors.UpdateFailed(err)
	}
	if cancelled == nil {
		return nil, apperrors.InvalidState("Offer is no longer open")
	}

	s.invalidate(ctx, cancelled)
	if _, err := s.timeline.PostOfferStatus(ctx, cancelled, model.OfferStatusCancelled, userID, "Offer cancelled."); err != nil {
		log.Warn().Err(err).Str("offerId", cancelled.ID).Msg("offer cancelled message failed")
	}

	audit.Log(ctx, audit.Event{Type: audit.EventOfferCancelled, UserID: userID, OfferID: cancelled.ID})
	return cancelled, nil
}

// ListByConversation returns the conversation's offers, newest first, from the view cache when warm.
func (s *OfferService) ListByConversation(ctx context.Context, conversationID, userID string) ([]model.Offer, error) {
	if _, err := s.conversationFor(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	path := cache.ConversationOffersPath(conversationID)
	if data, ok := s.views.Get(ctx, path); ok {
		var offers []model.Offer
		if err := json.Unmarshal(data, &offers); err == nil {
			return offers, nil
		}
		log.Warn().Str("path", path).Msg("discarding undecodable cached view")
	}

	offers, err := s.offers.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if offers == nil {
		offers = []model.Offer{}
	}
	if data, err := json.Marshal(offers); err == nil {
		s.views.Set(ctx, path, data)
	}
	return offers, nil
}

// Quote returns the fee breakdown a client pays for an offer.
func (s *OfferService) Quote(ctx context.Context, offerID, userID string) (billing.Quote, error) {
	offer, err := s.participantOffer(ctx, offerID, userID)
	if err != nil {
		return billing.Quote{}, err
	}
	return billing.Compute(offer.Amount), nil
}

func (s *OfferService) participantOffer(ctx context.Context, offerID, userID string) (*model.Offer, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("Authentication required")
	}
	offer, err := s.offers.FindByID(ctx, offerID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if offer == nil {
		return nil, apperrors.NotFound("Offer")
	}
	if !offer.IsParticipant(userID) {
		return nil, apperrors.Forbidden("Not a participant of this offer")
	}
	return offer, nil
}

func (s *OfferService) invalidate(ctx context.Context, offer *model.Offer) {
	if err := s.views.Invalidate(ctx, cache.ConversationOffersPath(offer.ConversationID), cache.OfferPath(offer.ID)); err != nil {
		log.Warn().Err(err).Str("offerId", offer.ID).Msg("cache invalidation failed")
	}
}
