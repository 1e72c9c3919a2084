package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/handypro/marketplace-server/internal/errors"
	"github.com/handypro/marketplace-server/internal/model"
	"github.com/handypro/marketplace-server/internal/payment"
	"github.com/handypro/marketplace-server/internal/repository"
)

type acceptanceFixture struct {
	offers        *mockOfferRepo
	conversations *mockConversationRepo
	profiles      *mockProfileRepo
	messages      *mockMessageRepo
	chat          *mockChat
	views         *mockViews
	gateway       *mockGateway
	svc           *AcceptanceService
}

func newAcceptanceFixture(mode AcceptMode) *acceptanceFixture {
	fx := &acceptanceFixture{
		offers:        new(mockOfferRepo),
		conversations: new(mockConversationRepo),
		profiles:      new(mockProfileRepo),
		messages:      new(mockMessageRepo),
		chat:          new(mockChat),
		views:         new(mockViews),
		gateway:       new(mockGateway),
	}
	fx.svc = NewAcceptanceService(AcceptanceDeps{
		Offers:        fx.offers,
		Conversations: fx.conversations,
		Profiles:      fx.profiles,
		Gateway:       fx.gateway,
		Timeline:      NewTimeline(fx.messages, fx.chat),
		Views:         fx.views,
		Mode:          mode,
		PublicBaseURL: "https://handypro.example",
	})
	fx.svc.background = func(fn func()) { fn() }
	return fx
}

func pendingOffer() *model.Offer {
	o := acceptedOffer()
	o.Status = model.OfferStatusPending
	return o
}

func acceptedCopy(o *model.Offer) *model.Offer {
	c := *o
	c.Status = model.OfferStatusAccepted
	at := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	c.AcceptedAt = &at
	return &c
}

func payoutProfile(id string) *model.Profile {
	acct := "acct_123"
	return &model.Profile{ID: id, Role: model.ProfileRolePro, StripeAccountID: &acct, PayoutsEnabled: true}
}

func clientProfile(id string) *model.Profile {
	email := "client@example.com"
	return &model.Profile{ID: id, Role: model.ProfileRoleClient, Email: &email}
}

func (fx *acceptanceFixture) expectCheckoutSuccess(accepted *model.Offer) {
	fx.profiles.On("FindByID", mock.Anything, accepted.ProfessionalID).Return(payoutProfile(accepted.ProfessionalID), nil)
	fx.profiles.On("FindByID", mock.Anything, accepted.ClientID).Return(clientProfile(accepted.ClientID), nil)
	fx.gateway.On("CreateCheckoutSession", mock.Anything, mock.Anything).
		Return(&payment.CheckoutSession{ID: "cs_1", URL: "https://checkout.example/cs_1"}, nil)

	withCheckout := *accepted
	sid, url := "cs_1", "https://checkout.example/cs_1"
	withCheckout.CheckoutSessionID = &sid
	withCheckout.CheckoutURL = &url
	fx.offers.On("SetCheckout", mock.Anything, accepted.ID, "cs_1", url).Return(&withCheckout, nil)

	fx.views.On("Invalidate", mock.Anything, mock.Anything).Return(nil)
	fx.messages.On("ExistsWithPayload", mock.Anything, accepted.ConversationID, mock.Anything).Return(false, nil)
	fx.messages.On("CreateSystem", mock.Anything, mock.Anything).Return(&model.Message{ID: "msg-1"}, nil)
	fx.chat.On("NotifyChatMessageByConversation", mock.Anything, accepted.ConversationID, accepted.ProfessionalID, mock.Anything).Return(nil)
}

func TestAcceptanceService_AcceptOffer(t *testing.T) {
	ctx := context.Background()

	t.Run("atomic path creates checkout", func(t *testing.T) {
		fx := newAcceptanceFixture(AcceptModeAuto)
		accepted := acceptedCopy(pendingOffer())

		fx.offers.On("AcceptAtomic", mock.Anything, "offer-1", "pro-1").Return(repository.AcceptCodeOK, nil)
		fx.offers.On("FindByID", mock.Anything, "offer-1").Return(accepted, nil)
		fx.expectCheckoutSuccess(accepted)

		result, err := fx.svc.AcceptOffer(ctx, "offer-1", "pro-1")

		require.NoError(t, err)
		assert.Equal(t, "https://checkout.example/cs_1", result.CheckoutURL)
		assert.Equal(t, model.Pesos(6090), result.Quote.Total)
		assert.Equal(t, model.OfferStatusAccepted, result.Offer.Status)

		fx.gateway.AssertCalled(t, "CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(p payment.CheckoutParams) bool {
			return p.OfferID == "offer-1" &&
				p.DestinationAccount == "acct_123" &&
				p.CustomerEmail == "client@example.com" &&
				p.Quote.Fee == model.Pesos(250) &&
				p.Quote.Tax == model.Pesos(840) &&
				p.IdempotencyKey != ""
		}))
		fx.messages.AssertCalled(t, "CreateSystem", mock.Anything, mock.MatchedBy(func(p model.CreateSystemMessageParams) bool {
			return p.SenderID == "pro-1" && string(p.Payload) == `{"type":"offer_status","offer_id":"offer-1","status":"accepted"}`
		}))
		fx.offers.AssertNotCalled(t, "AcceptConditional", mock.Anything, mock.Anything, mock.Anything)
	})

	tests := []struct {
		name string
		code repository.AcceptCode
		want apperrors.ErrorCode
	}{
		{"not found", repository.AcceptCodeOfferNotFound, apperrors.ErrCodeNotFound},
		{"not the professional", repository.AcceptCodeForbidden, apperrors.ErrCodeForbidden},
		{"already accepted", repository.AcceptCodeInvalidState, apperrors.ErrCodeInvalidState},
		{"no payout account", repository.AcceptCodeBankAccountRequired, apperrors.ErrCodeBankAccountRequired},
	}
	for _, tt := range tests {
		t.Run("atomic "+tt.name, func(t *testing.T) {
			fx := newAcceptanceFixture(AcceptModeRPC)
			fx.offers.On("AcceptAtomic", mock.Anything, "offer-1", "pro-1").Return(tt.code, nil)

			result, err := fx.svc.AcceptOffer(ctx, "offer-1", "pro-1")

			assert.Nil(t, result)
			assert.Equal(t, tt.want, apperrors.GetCode(err))
			fx.gateway.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
		})
	}

	t.Run("falls back to conditional update when function is missing", func(t *testing.T) {
		fx := newAcceptanceFixture(AcceptModeAuto)
		offer := pendingOffer()
		accepted := acceptedCopy(offer)

		fx.offers.On("AcceptAtomic", mock.Anything, "offer-1", "pro-1").Return(repository.AcceptCode(""), repository.ErrAtomicAcceptUnavailable)
		fx.offers.On("FindByID", mock.Anything, "offer-1").Return(offer, nil)
		fx.offers.On("AcceptConditional", mock.Anything, "offer-1", "pro-1").Return(accepted, nil)
		fx.expectCheckoutSuccess(accepted)

		result, err := fx.svc.AcceptOffer(ctx, "offer-1", "pro-1")

		require.NoError(t, err)
		assert.Equal(t, "cs_1", *result.Offer.CheckoutSessionID)
		fx.offers.AssertCalled(t, "AcceptConditional", mock.Anything, "offer-1", "pro-1")
	})

	t.Run("rpc mode does not fall back", func(t *testing.T) {
		fx := newAcceptanceFixture(AcceptModeRPC)
		fx.offers.On("AcceptAtomic", mock.Anything, "offer-1", "pro-1").Return(repository.AcceptCode(""), repository.ErrAtomicAcceptUnavailable)

		_, err := fx.svc.AcceptOffer(ctx, "offer-1", "pro-1")

		assert.Equal(t, apperrors.ErrCodeUpdateFailed, apperrors.GetCode(err))
		fx.offers.AssertNotCalled(t, "AcceptConditional", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("conditional rejects the client", func(t *testing.T) {
		fx := newAcceptanceFixture(AcceptModeConditional)
		fx.offers.On("FindByID", mock.Anything, "offer-1").Return(pendingOffer(), nil)

		_, err := fx.svc.AcceptOffer(ctx, "offer-1", "client-1")

		assert.Equal(t, apperrors.ErrCodeForbidden, apperrors.GetCode(err))
		fx.offers.AssertNotCalled(t, "AcceptAtomic", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("conditional requires payout account", func(t *testing.T) {
		fx := newAcceptanceFixture(AcceptModeConditional)
		fx.offers.On("FindByID", mock.Anything, "offer-1").Return(pendingOffer(), nil)
		fx.profiles.On("FindByID", mock.Anything, "pro-1").Return(&model.Profile{ID: "pro-1", Role: model.ProfileRolePro}, nil)

		_, err := fx.svc.AcceptOffer(ctx, "offer-1", "pro-1")

		assert.Equal(t, apperrors.ErrCodeBankAccountRequired, apperrors.GetCode(err))
		fx.offers.AssertNotCalled(t, "AcceptConditional", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("conditional race lost reports invalid state", func(t *testing.T) {
		fx := newAcceptanceFixture(AcceptModeConditional)
		fx.offers.On("FindByID", mock.Anything, "offer-1").Return(pendingOffer(), nil).Once()
		fx.offers.On("FindByID", mock.Anything, "offer-1").Return(acceptedCopy(pendingOffer()), nil).Once()
		fx.profiles.On("FindByID", mock.Anything, "pro-1").Return(payoutProfile("pro-1"), nil)
		fx.offers.On("AcceptConditional", mock.Anything, "offer-1", "pro-1").Return(nil, nil)

		_, err := fx.svc.AcceptOffer(ctx, "offer-1", "pro-1")

		assert.Equal(t, apperrors.ErrCodeInvalidState, apperrors.GetCode(err))
		fx.gateway.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
	})

	t.Run("checkout failure reverts acceptance", func(t *testing.T) {
		fx := newAcceptanceFixture(AcceptModeRPC)
		accepted := acceptedCopy(pendingOffer())
		fx.offers.On("AcceptAtomic", mock.Anything, "offer-1", "pro-1").Return(repository.AcceptCodeOK, nil)
		fx.offers.On("FindByID", mock.Anything, "offer-1").Return(accepted, nil)
		fx.profiles.On("FindByID", mock.Anything, mock.Anything).Return(nil, nil)
		fx.gateway.On("CreateCheckoutSession", mock.Anything, mock.Anything).Return(nil, errors.New("processor down"))
		fx.offers.On("RevertAcceptance", mock.Anything, "offer-1").Return(true, nil)

		_, err := fx.svc.AcceptOffer(ctx, "offer-1", "pro-1")

		assert.Equal(t, apperrors.ErrCodeCheckoutFailed, apperrors.GetCode(err))
		fx.offers.AssertCalled(t, "RevertAcceptance", mock.Anything, "offer-1")
		fx.offers.AssertNotCalled(t, "SetCheckout", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		fx.messages.AssertNotCalled(t, "CreateSystem", mock.Anything, mock.Anything)
	})

	t.Run("checkout persisted on zero rows", func(t *testing.T) {
		fx := newAcceptanceFixture(AcceptModeRPC)
		accepted := acceptedCopy(pendingOffer())
		fx.offers.On("AcceptAtomic", mock.Anything, "offer-1", "pro-1").Return(repository.AcceptCodeOK, nil)
		fx.offers.On("FindByID", mock.Anything, "offer-1").Return(accepted, nil)
		fx.profiles.On("FindByID", mock.Anything, mock.Anything).Return(nil, nil)
		fx.gateway.On("CreateCheckoutSession", mock.Anything, mock.Anything).
			Return(&payment.CheckoutSession{ID: "cs_1", URL: "https://checkout.example/cs_1"}, nil)
		fx.offers.On("SetCheckout", mock.Anything, "offer-1", "cs_1", "https://checkout.example/cs_1").Return(nil, nil)

		_, err := fx.svc.AcceptOffer(ctx, "offer-1", "pro-1")

		assert.Equal(t, apperrors.ErrCodeUpdateNoRows, apperrors.GetCode(err))
	})

	t.Run("missing gateway is a misconfiguration", func(t *testing.T) {
		fx := newAcceptanceFixture(AcceptModeAuto)
		fx.svc.Gateway = nil

		_, err := fx.svc.AcceptOffer(ctx, "offer-1", "pro-1")

		assert.Equal(t, apperrors.ErrCodeServerMisconfigured, apperrors.GetCode(err))
		fx.offers.AssertNotCalled(t, "AcceptAtomic", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("anonymous caller", func(t *testing.T) {
		fx := newAcceptanceFixture(AcceptModeAuto)

		_, err := fx.svc.AcceptOffer(ctx, "offer-1", "")

		assert.Equal(t, apperrors.ErrCodeUnauthorized, apperrors.GetCode(err))
	})
}

func TestAcceptanceService_AcceptInConversation(t *testing.T) {
	ctx := context.Background()
	conv := &model.Conversation{ID: "conv-1", ClientID: "client-1", ProfessionalID: "pro-1"}

	t.Run("accepts the open offer", func(t *testing.T) {
		fx := newAcceptanceFixture(AcceptModeRPC)
		accepted := acceptedCopy(pendingOffer())
		fx.conversations.On("FindByID", mock.Anything, "conv-1").Return(conv, nil)
		fx.offers.On("FindOpenByConversation", mock.Anything, "conv-1").Return(pendingOffer(), nil)
		fx.offers.On("AcceptAtomic", mock.Anything, "offer-1", "pro-1").Return(repository.AcceptCodeOK, nil)
		fx.offers.On("FindByID", mock.Anything, "offer-1").Return(accepted, nil)
		fx.expectCheckoutSuccess(accepted)

		result, err := fx.svc.AcceptInConversation(ctx, "conv-1", "pro-1")

		require.NoError(t, err)
		assert.Equal(t, "offer-1", result.Offer.ID)
	})

	t.Run("no open offer", func(t *testing.T) {
		fx := newAcceptanceFixture(AcceptModeRPC)
		fx.conversations.On("FindByID", mock.Anything, "conv-1").Return(conv, nil)
		fx.offers.On("FindOpenByConversation", mock.Anything, "conv-1").Return(nil, nil)

		_, err := fx.svc.AcceptInConversation(ctx, "conv-1", "pro-1")

		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})

	t.Run("outsider", func(t *testing.T) {
		fx := newAcceptanceFixture(AcceptModeRPC)
		fx.conversations.On("FindByID", mock.Anything, "conv-1").Return(conv, nil)

		_, err := fx.svc.AcceptInConversation(ctx, "conv-1", "stranger")

		assert.Equal(t, apperrors.ErrCodeForbidden, apperrors.GetCode(err))
		fx.offers.AssertNotCalled(t, "FindOpenByConversation", mock.Anything, mock.Anything)
	})
}

func TestAcceptanceService_ListCandidates(t *testing.T) {
	fx := newAcceptanceFixture(AcceptModeAuto)
	conv := &model.Conversation{ID: "conv-1", ClientID: "client-1", ProfessionalID: "pro-1"}
	fx.conversations.On("FindByID", mock.Anything, "conv-1").Return(conv, nil)
	fx.offers.On("ListByConversation", mock.Anything, "conv-1").Return([]model.Offer{*pendingOffer()}, nil)

	offers, err := fx.svc.ListCandidates(context.Background(), "conv-1", "client-1")

	require.NoError(t, err)
	assert.Len(t, offers, 1)
	fx.offers.AssertNotCalled(t, "AcceptAtomic", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckoutIdempotencyKey(t *testing.T) {
	offer := acceptedCopy(pendingOffer())
	again := acceptedCopy(pendingOffer())
	assert.Equal(t, checkoutIdempotencyKey(offer), checkoutIdempotencyKey(again))

	later := offer.AcceptedAt.Add(time.Minute)
	again.AcceptedAt = &later
	assert.NotEqual(t, checkoutIdempotencyKey(offer), checkoutIdempotencyKey(again))
}
