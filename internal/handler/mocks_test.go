package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"

	"github.com/handypro/marketplace-server/internal/billing"
	"github.com/handypro/marketplace-server/internal/middleware"
	"github.com/handypro/marketplace-server/internal/model"
	"github.com/handypro/marketplace-server/internal/service"
)

const (
	testOfferID = "5b0c5a5e-3e8f-4f8a-9a57-0c7c1d2e3f40"
	testConvID  = "9d4f1c2b-6a7e-4b3c-8d9e-1f2a3b4c5d6e"
	testUserID  = "user-pro"
)

type mockAcceptor struct {
	mock.Mock
}

func acceptResultOrNil(args mock.Arguments) (*service.AcceptResult, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AcceptResult), args.Error(1)
}

func (m *mockAcceptor) AcceptOffer(ctx context.Context, offerID, actingUserID string) (*service.AcceptResult, error) {
	return acceptResultOrNil(m.Called(ctx, offerID, actingUserID))
}

func (m *mockAcceptor) AcceptInConversation(ctx context.Context, conversationID, actingUserID string) (*service.AcceptResult, error) {
	return acceptResultOrNil(m.Called(ctx, conversationID, actingUserID))
}

func (m *mockAcceptor) ListCandidates(ctx context.Context, conversationID, userID string) ([]model.Offer, error) {
	args := m.Called(ctx, conversationID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Offer), args.Error(1)
}

type mockOfferManager struct {
	mock.Mock
}

func offerOrNil(args mock.Arguments) (*model.Offer, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Offer), args.Error(1)
}

func (m *mockOfferManager) Create(ctx context.Context, conversationID, userID string, in service.CreateOfferInput) (*model.Offer, error) {
	return offerOrNil(m.Called(ctx, conversationID, userID, in))
}

func (m *mockOfferManager) Cancel(ctx context.Context, offerID, userID string) (*model.Offer, error) {
	return offerOrNil(m.Called(ctx, offerID, userID))
}

func (m *mockOfferManager) ListByConversation(ctx context.Context, conversationID, userID string) ([]model.Offer, error) {
	args := m.Called(ctx, conversationID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Offer), args.Error(1)
}

func (m *mockOfferManager) Quote(ctx context.Context, offerID, userID string) (billing.Quote, error) {
	args := m.Called(ctx, offerID, userID)
	return args.Get(0).(billing.Quote), args.Error(1)
}

type mockPaymentSyncer struct {
	mock.Mock
}

func (m *mockPaymentSyncer) SyncPaymentIntent(ctx context.Context, offerID, userID, paymentIntentID string) (*service.SyncResult, error) {
	args := m.Called(ctx, offerID, userID, paymentIntentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SyncResult), args.Error(1)
}

func (m *mockPaymentSyncer) HandleWebhook(ctx context.Context, payload []byte, signature string) (*service.WebhookResult, error) {
	args := m.Called(ctx, payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.WebhookResult), args.Error(1)
}

func (m *mockPaymentSyncer) ReconcileStale(ctx context.Context) (service.ReconcileStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(service.ReconcileStats), args.Error(1)
}

type mockDisputeManager struct {
	mock.Mock
}

func disputeOrNil(args mock.Arguments) (*model.Dispute, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Dispute), args.Error(1)
}

func (m *mockDisputeManager) Open(ctx context.Context, offerID, userID, reason string) (*model.Dispute, error) {
	return disputeOrNil(m.Called(ctx, offerID, userID, reason))
}

func (m *mockDisputeManager) List(ctx context.Context, adminID string, status model.DisputeStatus, limit, offset int) ([]model.Dispute, error) {
	args := m.Called(ctx, adminID, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Dispute), args.Error(1)
}

func (m *mockDisputeManager) Resolve(ctx context.Context, disputeID, adminID string, outcome model.DisputeOutcome, resolution string) (*model.Dispute, error) {
	return disputeOrNil(m.Called(ctx, disputeID, adminID, outcome, resolution))
}

// serve routes req through a chi router as user, so URL params resolve.
func serve(routes func(chi.Router), method, target string, body io.Reader, user string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if user != "" {
				req = req.WithContext(middleware.WithUser(req.Context(), &model.User{ID: user}))
			}
			next.ServeHTTP(w, req)
		})
	})
	routes(r)

	req := httptest.NewRequest(method, target, body)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}
