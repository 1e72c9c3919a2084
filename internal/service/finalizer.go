package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/handypro/marketplace-server/internal/audit"
	"github.com/handypro/marketplace-server/internal/cache"
	"github.com/handypro/marketplace-server/internal/model"
	"github.com/handypro/marketplace-server/internal/notify"
	"github.com/handypro/marketplace-server/internal/repository"
)

type FinalizeResult struct {
	OK             bool   `json:"ok"`
	RequestID      string `json:"requestId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	ProfessionalID string `json:"professionalId,omitempty"`
}

type FinalizerDeps struct {
	Offers        repository.OfferRepository
	Agreements    repository.AgreementRepository
	Requests      repository.RequestRepository
	Conversations repository.ConversationRepository
	Calendar      repository.CalendarRepository
	Profiles      repository.ProfileRepository
	Timeline      *Timeline
	Email         notify.EmailSender
	Views         ViewInvalidator
	PublicBaseURL string
}

// PaymentFinalizer brings an offer, its agreement, request, calendar and chat
// timeline into the paid state. Safe to run any number of times.
type PaymentFinalizer struct {
	FinalizerDeps
	now func() time.Time
}

func NewPaymentFinalizer(deps FinalizerDeps) *PaymentFinalizer {
	return &PaymentFinalizer{FinalizerDeps: deps, now: time.Now}
}

// FinalizeOfferPayment never fails. Offers that were cancelled or disputed are
// left untouched. Steps after marking the offer paid are best effort; a later
// call completes whatever a previous one left undone.
func (f *PaymentFinalizer) FinalizeOfferPayment(ctx context.Context, offerID string, paymentRef *string) FinalizeResult {
	logger := log.With().Str("offerId", offerID).Logger()

	offer, err := f.Offers.FindByID(ctx, offerID)
	if err != nil {
		logger.Error().Err(err).Msg("finalize: load offer failed")
		return FinalizeResult{}
	}
	if offer == nil {
		logger.Warn().Msg("finalize: offer not found")
		return FinalizeResult{}
	}

	result := FinalizeResult{
		ConversationID: offer.ConversationID,
		ProfessionalID: offer.ProfessionalID,
	}
	if !offer.Status.Payable() {
		logger.Warn().Str("status", string(offer.Status)).Msg("finalize: offer is not payable, skipping")
		return result
	}

	req := f.loadRequest(ctx, offer, logger)
	schedule := deriveSchedule(offer, req, f.now())

	paid, err := f.Offers.MarkPaid(ctx, offer.ID, paymentRef)
	if err != nil {
		logger.Error().Err(err).Msg("finalize: mark offer paid failed")
		return result
	}
	if paid == nil {
		logger.Warn().Msg("finalize: offer left payable state concurrently")
		return result
	}

	if req != nil {
		result.RequestID = req.ID
		f.settleRequest(ctx, paid, req, schedule, logger)
	}

	body := fmt.Sprintf("Payment confirmed. Service scheduled for %s.", schedule)
	inserted, err := f.Timeline.PostOfferStatus(ctx, paid, model.OfferStatusPaid, paid.ClientID, body)
	if err != nil {
		logger.Warn().Err(err).Msg("finalize: system message failed")
	}

	// The paid message is posted once, so it gates the email too.
	if inserted {
		f.emailProfessional(ctx, paid, schedule, logger)
	}

	paths := []string{cache.ConversationOffersPath(paid.ConversationID), cache.OfferPath(paid.ID)}
	if req != nil {
		paths = append(paths, cache.RequestPath(req.ID))
	}
	if err := f.Views.Invalidate(ctx, paths...); err != nil {
		logger.Warn().Err(err).Msg("finalize: cache invalidation failed")
	}

	audit.Log(ctx, audit.Event{
		Type:    audit.EventOfferPaid,
		UserID:  paid.ClientID,
		OfferID: paid.ID,
		Details: map[string]interface{}{"amount": paid.Amount.String(), "schedule": schedule.String()},
	})

	result.OK = true
	return result
}

func (f *PaymentFinalizer) loadRequest(ctx context.Context, offer *model.Offer, logger zerolog.Logger) *model.ServiceRequest {
	conv, err := f.Conversations.FindByID(ctx, offer.ConversationID)
	if err != nil {
		logger.Warn().Err(err).Msg("finalize: load conversation failed")
		return nil
	}
	if conv == nil || conv.RequestID == nil {
		return nil
	}

	req, err := f.Requests.FindByID(ctx, *conv.RequestID)
	if err != nil {
		logger.Warn().Err(err).Str("requestId", *conv.RequestID).Msg("finalize: load request failed")
		return nil
	}
	return req
}

func (f *PaymentFinalizer) settleRequest(ctx context.Context, offer *model.Offer, req *model.ServiceRequest, schedule Schedule, logger zerolog.Logger) {
	logger = logger.With().Str("requestId", req.ID).Logger()

	if _, err := f.Agreements.UpsertPaid(ctx, model.UpsertPaidAgreementParams{
		RequestID:      req.ID,
		ProfessionalID: offer.ProfessionalID,
		OfferID:        offer.ID,
		Amount:         offer.Amount,
		ScheduledDate:  schedule.Date,
		ScheduledTime:  schedule.Time,
	}); err != nil {
		logger.Warn().Err(err).Msg("finalize: agreement upsert failed")
	}

	if n, err := f.Agreements.CancelSiblings(ctx, req.ID, offer.ProfessionalID); err != nil {
		logger.Warn().Err(err).Msg("finalize: cancel sibling agreements failed")
	} else if n > 0 {
		logger.Info().Int64("cancelled", n).Msg("finalize: sibling agreements cancelled")
	}

	if _, err := f.Requests.MarkScheduled(ctx, req.ID, offer.ProfessionalID, schedule.Date, schedule.Time); err != nil {
		logger.Warn().Err(err).Msg("finalize: schedule request failed")
	}

	if _, err := f.Calendar.UpsertForRequest(ctx, model.UpsertCalendarEventParams{
		ProID:         offer.ProfessionalID,
		RequestID:     req.ID,
		Title:         offer.Title,
		ScheduledDate: schedule.Date,
		ScheduledTime: schedule.Time,
	}); err != nil {
		logger.Warn().Err(err).Msg("finalize: calendar upsert failed")
	}
}

func (f *PaymentFinalizer) emailProfessional(ctx context.Context, offer *model.Offer, schedule Schedule, logger zerolog.Logger) {
	pro, err := f.Profiles.FindByID(ctx, offer.ProfessionalID)
	if err != nil {
		logger.Warn().Err(err).Msg("finalize: load professional failed")
		return
	}
	if pro == nil || pro.Email == nil || *pro.Email == "" {
		return
	}

	link := ""
	if f.PublicBaseURL != "" {
		link = fmt.Sprintf("%s/conversations/%s", f.PublicBaseURL, offer.ConversationID)
	}
	email, err := notify.PaymentConfirmedEmail(*pro.Email, notify.PaymentConfirmedData{
		Name:     pro.DisplayName(),
		Title:    offer.Title,
		Amount:   offer.Amount.String(),
		Currency: offer.Currency,
		Schedule: schedule.String(),
		Link:     link,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("finalize: render email failed")
		return
	}
	if err := f.Email.Send(ctx, email); err != nil {
		logger.Warn().Err(err).Msg("finalize: email failed")
	}
}
