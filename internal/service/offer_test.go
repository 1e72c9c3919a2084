package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/handypro/marketplace-server/internal/errors"
	"github.com/handypro/marketplace-server/internal/model"
)

type offerFixture struct {
	offers        *mockOfferRepo
	conversations *mockConversationRepo
	messages      *mockMessageRepo
	chat          *mockChat
	views         *mockViews
	svc           *OfferService
}

func newOfferFixture() *offerFixture {
	fx := &offerFixture{
		offers:        new(mockOfferRepo),
		conversations: new(mockConversationRepo),
		messages:      new(mockMessageRepo),
		chat:          new(mockChat),
		views:         new(mockViews),
	}
	fx.svc = NewOfferService(fx.offers, fx.conversations, NewTimeline(fx.messages, fx.chat), fx.views, "MXN")
	fx.conversations.On("FindByID", mock.Anything, "conv-1").
		Return(&model.Conversation{ID: "conv-1", ClientID: "client-1", ProfessionalID: "pro-1"}, nil)
	return fx
}

func TestOfferService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates and announces", func(t *testing.T) {
		fx := newOfferFixture()
		created := pendingOffer()
		fx.offers.On("Create", mock.Anything, mock.MatchedBy(func(p model.CreateOfferParams) bool {
			return p.ClientID == "client-1" && p.ProfessionalID == "pro-1" && p.CreatedBy == "pro-1" &&
				p.Currency == "MXN" && p.Title == "Sink repair"
		})).Return(created, nil)
		fx.views.On("Invalidate", mock.Anything, []string{"/conversations/conv-1/offers", "/offers/offer-1"}).Return(nil)
		fx.messages.On("ExistsWithPayload", mock.Anything, "conv-1", mock.Anything).Return(false, nil)
		fx.messages.On("CreateSystem", mock.Anything, mock.Anything).Return(&model.Message{ID: "m"}, nil)
		fx.chat.On("NotifyChatMessageByConversation", mock.Anything, "conv-1", "pro-1", "New offer: Sink repair for 5000.00 MXN.").Return(nil)

		offer, err := fx.svc.Create(ctx, "conv-1", "pro-1", CreateOfferInput{Title: " Sink repair ", Amount: model.Pesos(5000)})

		require.NoError(t, err)
		assert.Equal(t, "offer-1", offer.ID)
		fx.chat.AssertExpectations(t)
	})

	t.Run("second open offer conflicts", func(t *testing.T) {
		fx := newOfferFixture()
		fx.offers.On("Create", mock.Anything, mock.Anything).Return(nil, &pq.Error{Code: "23505"})

		_, err := fx.svc.Create(ctx, "conv-1", "client-1", CreateOfferInput{Title: "Paint", Amount: model.Pesos(10)})

		assert.Equal(t, apperrors.ErrCodeConflict, apperrors.GetCode(err))
	})

	tests := []struct {
		name string
		in   CreateOfferInput
	}{
		{"empty title", CreateOfferInput{Title: "  ", Amount: model.Pesos(10)}},
		{"zero amount", CreateOfferInput{Title: "Paint"}},
		{"bad time", CreateOfferInput{Title: "Paint", Amount: model.Pesos(10), ServiceTime: ptr("9am")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newOfferFixture()
			_, err := fx.svc.Create(ctx, "conv-1", "client-1", tt.in)
			assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
			fx.offers.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}

	t.Run("outsider", func(t *testing.T) {
		fx := newOfferFixture()
		_, err := fx.svc.Create(ctx, "conv-1", "stranger", CreateOfferInput{Title: "Paint", Amount: model.Pesos(10)})
		assert.Equal(t, apperrors.ErrCodeForbidden, apperrors.GetCode(err))
	})
}

func TestOfferService_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("cancels open offer", func(t *testing.T) {
		fx := newOfferFixture()
		cancelled := pendingOffer()
		cancelled.Status = model.OfferStatusCancelled
		fx.offers.On("FindByID", mock.Anything, "offer-1").Return(pendingOffer(), nil)
		fx.offers.On("Cancel", mock.Anything, "offer-1").Return(cancelled, nil)
		fx.views.On("Invalidate", mock.Anything, mock.Anything).Return(nil)
		fx.messages.On("ExistsWithPayload", mock.Anything, "conv-1", mock.Anything).Return(true, nil)

		offer, err := fx.svc.Cancel(ctx, "offer-1", "client-1")

		require.NoError(t, err)
		assert.Equal(t, model.OfferStatusCancelled, offer.Status)
		fx.messages.AssertNotCalled(t, "CreateSystem", mock.Anything, mock.Anything)
	})

	t.Run("paid offer cannot be cancelled", func(t *testing.T) {
		fx := newOfferFixture()
		paid := pendingOffer()
		paid.Status = model.OfferStatusPaid
		fx.offers.On("FindByID", mock.Anything, "offer-1").Return(paid, nil)

		_, err := fx.svc.Cancel(ctx, "offer-1", "client-1")

		assert.Equal(t, apperrors.ErrCodeInvalidState, apperrors.GetCode(err))
		fx.offers.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything)
	})
}

func TestOfferService_ListByConversation(t *testing.T) {
	ctx := context.Background()

	t.Run("cache hit skips the store", func(t *testing.T) {
		fx := newOfferFixture()
		cached, _ := json.Marshal([]model.Offer{*pendingOffer()})
		fx.views.On("Get", mock.Anything, "/conversations/conv-1/offers").Return(cached, true)

		offers, err := fx.svc.ListByConversation(ctx, "conv-1", "client-1")

		require.NoError(t, err)
		require.Len(t, offers, 1)
		assert.Equal(t, model.Pesos(5000), offers[0].Amount)
		fx.offers.AssertNotCalled(t, "ListByConversation", mock.Anything, mock.Anything)
	})

	t.Run("cache miss fills the view", func(t *testing.T) {
		fx := newOfferFixture()
		fx.views.On("Get", mock.Anything, "/conversations/conv-1/offers").Return(nil, false)
		fx.offers.On("ListByConversation", mock.Anything, "conv-1").Return(nil, nil)
		fx.views.On("Set", mock.Anything, "/conversations/conv-1/offers", []byte("[]")).Return()

		offers, err := fx.svc.ListByConversation(ctx, "conv-1", "pro-1")

		require.NoError(t, err)
		assert.Empty(t, offers)
		fx.views.AssertExpectations(t)
	})
}

func TestOfferService_Quote(t *testing.T) {
	fx := newOfferFixture()
	offer := pendingOffer()
	offer.Amount = model.Pesos(30000)
	fx.offers.On("FindByID", mock.Anything, "offer-1").Return(offer, nil)

	q, err := fx.svc.Quote(context.Background(), "offer-1", "client-1")

	require.NoError(t, err)
	assert.Equal(t, model.Pesos(1500), q.Fee)
	assert.Equal(t, model.Pesos(5040), q.Tax)
	assert.Equal(t, model.Pesos(36540), q.Total)

	_, err = fx.svc.Quote(context.Background(), "offer-1", "stranger")
	assert.Equal(t, apperrors.ErrCodeForbidden, apperrors.GetCode(err))
}
