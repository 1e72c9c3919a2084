package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/handypro/marketplace-server/internal/audit"
	"github.com/handypro/marketplace-server/internal/cache"
	"github.com/handypro/marketplace-server/internal/database"
	apperrors "github.com/handypro/marketplace-server/internal/errors"
	"github.com/handypro/marketplace-server/internal/model"
	"github.com/handypro/marketplace-server/internal/repository"
)

const maxDisputeReasonLength = 2000

// disputeStatusPayload tags dispute messages by dispute id so they never collide with offer status messages.
type disputeStatusPayload struct {
	Type      string              `json:"type"`
	DisputeID string              `json:"dispute_id"`
	Status    model.DisputeStatus `json:"status"`
}

type DisputeService struct {
	disputes repository.DisputeRepository
	offers   repository.OfferRepository
	profiles repository.ProfileRepository
	timeline *Timeline
	views    ViewInvalidator
}

func NewDisputeService(
	disputes repository.DisputeRepository,
	offers repository.OfferRepository,
	profiles repository.ProfileRepository,
	timeline *Timeline,
	views ViewInvalidator,
) *DisputeService {
	return &DisputeService{
		disputes: disputes,
		offers:   offers,
		profiles: profiles,
		timeline: timeline,
		views:    views,
	}
}

// RequireAdmin fails unless userID belongs to an admin profile.
func (s *DisputeService) RequireAdmin(ctx context.Context, userID string) error {
	if userID == "" {
		return apperrors.Unauthorized("Authentication required")
	}
	profile, err := s.profiles.FindByID(ctx, userID)
	if err != nil {
		return apperrors.Database(err)
	}
	if profile == nil || profile.Role != model.ProfileRoleAdmin {
		return apperrors.Forbidden("Admin access required")
	}
	return nil
}

func (s *DisputeService) Open(ctx context.Context, offerID, userID, reason string) (*model.Dispute, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("Authentication required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.InvalidInput("reason", "must not be empty")
	}
	if len(reason) > maxDisputeReasonLength {
		return nil, apperrors.InvalidInput("reason", fmt.Sprintf("must be at most %d characters", maxDisputeReasonLength))
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
	if offer.Status != model.OfferStatusPaid {
		return nil, apperrors.InvalidState("Only paid offers can be disputed")
	}

	dispute, err := s.disputes.Open(ctx, offerID, userID, reason)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOfferNotDisputable):
			return nil, apperrors.InvalidState("Only paid offers can be disputed")
		case database.IsUniqueViolation(err):
			return nil, apperrors.Conflict("A dispute is already open for this offer")
		}
		return nil, apperrors.Database(err)
	}

	s.announce(ctx, offer, dispute, userID, "A dispute was opened for this offer. Our team will review it.")
	audit.Log(ctx, audit.Event{
		Type:    audit.EventDisputeOpened,
		UserID:  userID,
		OfferID: offerID,
		Details: map[string]interface{}{"disputeId": dispute.ID},
	})
	return dispute, nil
}

func (s *DisputeService) List(ctx context.Context, adminID string, status model.DisputeStatus, limit, offset int) ([]model.Dispute, error) {
	if err := s.RequireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	if status == "" {
		status = model.DisputeStatusOpen
	}
	disputes, err := s.disputes.ListByStatus(ctx, status, limit, offset)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return disputes, nil
}

// Resolve closes a dispute. Release keeps the payment with the professional, refund cancels the offer.
func (s *DisputeService) Resolve(ctx context.Context, disputeID, adminID string, outcome model.DisputeOutcome, resolution string) (*model.Dispute, error) {
	if err := s.RequireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	if outcome != model.DisputeOutcomeRelease && outcome != model.DisputeOutcomeRefund {
		return nil, apperrors.InvalidInput("outcome", "must be release or refund")
	}

	dispute, err := s.disputes.Resolve(ctx, model.ResolveDisputeParams{
		DisputeID:  disputeID,
		AdminID:    adminID,
		Outcome:    outcome,
		Resolution: strings.TrimSpace(resolution),
	})
	if err != nil {
		if errors.Is(err, repository.ErrDisputeNotOpen) {
			existing, findErr := s.disputes.FindByID(ctx, disputeID)
			if findErr == nil && existing == nil {
				return nil, apperrors.NotFound("Dispute")
			}
			return nil, apperrors.InvalidState("Dispute is already resolved")
		}
		return nil, apperrors.Database(err)
	}

	if offer, err := s.offers.FindByID(ctx, dispute.OfferID); err == nil && offer != nil {
		body := "The dispute was resolved in favor of the professional."
		if outcome == model.DisputeOutcomeRefund {
			body = "The dispute was resolved with a refund. The offer is cancelled."
		}
		s.announce(ctx, offer, dispute, adminID, body)
	}

	audit.Log(ctx, audit.Event{
		Type:    audit.EventDisputeResolved,
		UserID:  adminID,
		OfferID: dispute.OfferID,
		Details: map[string]interface{}{"disputeId": dispute.ID, "outcome": string(outcome)},
	})
	return dispute, nil
}

func (s *DisputeService) announce(ctx context.Context, offer *model.Offer, dispute *model.Dispute, senderID, body string) {
	payload := disputeStatusPayload{Type: "dispute_status", DisputeID: dispute.ID, Status: dispute.Status}
	if _, err := s.timeline.Post(ctx, offer.ConversationID, senderID, body, payload); err != nil {
		log.Warn().Err(err).Str("disputeId", dispute.ID).Msg("dispute message failed")
	}
	if err := s.views.Invalidate(ctx, cache.ConversationOffersPath(offer.ConversationID), cache.OfferPath(offer.ID)); err != nil {
		log.Warn().Err(err).Str("offerId", offer.ID).Msg("cache invalidation failed")
	}
}
