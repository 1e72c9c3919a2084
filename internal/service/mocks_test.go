package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/handypro/marketplace-server/internal/model"
	"github.com/handypro/marketplace-server/internal/notify"
	"github.com/handypro/marketplace-server/internal/payment"
	"github.com/handypro/marketplace-server/internal/repository"
)

type mockOfferRepo struct {
	mock.Mock
}

func offerOrNil(args mock.Arguments) (*model.Offer, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Offer), args.Error(1)
}

func (m *mockOfferRepo) FindByID(ctx context.Context, id string) (*model.Offer, error) {
	return offerOrNil(m.Called(ctx, id))
}

func (m *mockOfferRepo) FindOpenByConversation(ctx context.Context, conversationID string) (*model.Offer, error) {
	return offerOrNil(m.Called(ctx, conversationID))
}

func (m *mockOfferRepo) ListByConversation(ctx context.Context, conversationID string) ([]model.Offer, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Offer), args.Error(1)
}

func (m *mockOfferRepo) Create(ctx context.Context, params model.CreateOfferParams) (*model.Offer, error) {
	return offerOrNil(m.Called(ctx, params))
}

func (m *mockOfferRepo) Cancel(ctx context.Context, id string) (*model.Offer, error) {
	return offerOrNil(m.Called(ctx, id))
}

func (m *mockOfferRepo) AcceptAtomic(ctx context.Context, id, actorID string) (repository.AcceptCode, error) {
	args := m.Called(ctx, id, actorID)
	return args.Get(0).(repository.AcceptCode), args.Error(1)
}

func (m *mockOfferRepo) AcceptConditional(ctx context.Context, id, actorID string) (*model.Offer, error) {
	return offerOrNil(m.Called(ctx, id, actorID))
}

func (m *mockOfferRepo) RevertAcceptance(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockOfferRepo) SetCheckout(ctx context.Context, id, sessionID, checkoutURL string) (*model.Offer, error) {
	return offerOrNil(m.Called(ctx, id, sessionID, checkoutURL))
}

func (m *mockOfferRepo) MarkPaid(ctx context.Context, id string, paymentRef *string) (*model.Offer, error) {
	return offerOrNil(m.Called(ctx, id, paymentRef))
}

func (m *mockOfferRepo) SetStatus(ctx context.Context, id string, from []model.OfferStatus, to model.OfferStatus) (*model.Offer, error) {
	return offerOrNil(m.Called(ctx, id, from, to))
}

func (m *mockOfferRepo) FindStaleCheckouts(ctx context.Context, acceptedBefore time.Time, limit int) ([]model.Offer, error) {
	args := m.Called(ctx, acceptedBefore, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Offer), args.Error(1)
}

func (m *mockOfferRepo) ExpireCheckout(ctx context.Context, id, sessionID string) (bool, error) {
	args := m.Called(ctx, id, sessionID)
	return args.Bool(0), args.Error(1)
}

type mockAgreementRepo struct {
	mock.Mock
}

func (m *mockAgreementRepo) FindByRequestAndProfessional(ctx context.Context, requestID, professionalID string) (*model.Agreement, error) {
	args := m.Called(ctx, requestID, professionalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Agreement), args.Error(1)
}

func (m *mockAgreementRepo) UpsertPaid(ctx context.Context, params model.UpsertPaidAgreementParams) (*model.Agreement, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Agreement), args.Error(1)
}

func (m *mockAgreementRepo) CancelSiblings(ctx context.Context, requestID, professionalID string) (int64, error) {
	args := m.Called(ctx, requestID, professionalID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockAgreementRepo) SetStatusByOffer(ctx context.Context, offerID string, status model.AgreementStatus) (int64, error) {
	args := m.Called(ctx, offerID, status)
	return args.Get(0).(int64), args.Error(1)
}

type mockRequestRepo struct {
	mock.Mock
}

func (m *mockRequestRepo) FindByID(ctx context.Context, id string) (*model.ServiceRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ServiceRequest), args.Error(1)
}

func (m *mockRequestRepo) MarkScheduled(ctx context.Context, id, professionalID string, date time.Time, timeOfDay string) (*model.ServiceRequest, error) {
	args := m.Called(ctx, id, professionalID, date, timeOfDay)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ServiceRequest), args.Error(1)
}

type mockConversationRepo struct {
	mock.Mock
}

func (m *mockConversationRepo) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}

type mockMessageRepo struct {
	mock.Mock
}

func (m *mockMessageRepo) ExistsWithPayload(ctx context.Context, conversationID string, payload json.RawMessage) (bool, error) {
	args := m.Called(ctx, conversationID, payload)
	return args.Bool(0), args.Error(1)
}

func (m *mockMessageRepo) CreateSystem(ctx context.Context, params model.CreateSystemMessageParams) (*model.Message, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

type mockCalendarRepo struct {
	mock.Mock
}

func (m *mockCalendarRepo) UpsertForRequest(ctx context.Context, params model.UpsertCalendarEventParams) (*model.CalendarEvent, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CalendarEvent), args.Error(1)
}

type mockProfileRepo struct {
	mock.Mock
}

func (m *mockProfileRepo) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Profile), args.Error(1)
}

type mockDisputeRepo struct {
	mock.Mock
}

func (m *mockDisputeRepo) Open(ctx context.Context, offerID, userID, reason string) (*model.Dispute, error) {
	args := m.Called(ctx, offerID, userID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) FindByID(ctx context.Context, id string) (*model.Dispute, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) ListByStatus(ctx context.Context, status model.DisputeStatus, limit, offset int) ([]model.Dispute, error) {
	args := m.Called(ctx, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) Resolve(ctx context.Context, params model.ResolveDisputeParams) (*model.Dispute, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Dispute), args.Error(1)
}

type mockChat struct {
	mock.Mock
}

func (m *mockChat) NotifyChatMessageByConversation(ctx context.Context, conversationID, senderID, text string) error {
	return m.Called(ctx, conversationID, senderID, text).Error(0)
}

type mockEmail struct {
	mock.Mock
}

func (m *mockEmail) Send(ctx context.Context, email notify.Email) error {
	return m.Called(ctx, email).Error(0)
}

type mockViews struct {
	mock.Mock
}

func (m *mockViews) Invalidate(ctx context.Context, paths ...string) error {
	return m.Called(ctx, paths).Error(0)
}

func (m *mockViews) Get(ctx context.Context, path string) ([]byte, bool) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).([]byte), args.Bool(1)
}

func (m *mockViews) Set(ctx context.Context, path string, data []byte) {
	m.Called(ctx, path, data)
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateCheckoutSession(ctx context.Context, params payment.CheckoutParams) (*payment.CheckoutSession, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.CheckoutSession), args.Error(1)
}

func (m *mockGateway) GetCheckoutSession(ctx context.Context, id string) (*payment.CheckoutSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.CheckoutSession), args.Error(1)
}

func (m *mockGateway) GetPaymentIntent(ctx context.Context, id string) (*payment.PaymentIntent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.PaymentIntent), args.Error(1)
}

func (m *mockGateway) ParseWebhook(payload []byte, signature string) (*payment.WebhookEvent, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.WebhookEvent), args.Error(1)
}

type mockFinalizer struct {
	mock.Mock
}

func (m *mockFinalizer) FinalizeOfferPayment(ctx context.Context, offerID string, paymentRef *string) FinalizeResult {
	return m.Called(ctx, offerID, paymentRef).Get(0).(FinalizeResult)
}
