package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/handypro/marketplace-server/internal/billing"
	apperrors "github.com/handypro/marketplace-server/internal/errors"
	"github.com/handypro/marketplace-server/internal/model"
	"github.com/handypro/marketplace-server/internal/service"
)

func TestOfferHandler_Accept(t *testing.T) {
	t.Run("returns offer and checkout url", func(t *testing.T) {
		acceptor := new(mockAcceptor)
		offer := &model.Offer{ID: testOfferID, Status: model.OfferStatusAccepted, Amount: model.Pesos(1000)}
		acceptor.On("AcceptOffer", mock.Anything, testOfferID, testUserID).Return(&service.AcceptResult{
			Offer:       offer,
			CheckoutURL: "https://checkout.example/cs_1",
			Quote:       billing.Compute(offer.Amount),
		}, nil)
		h := NewOfferHandler(acceptor, new(mockOfferManager))

		rec := serve(h.Routes, http.MethodPost, "/offers/"+testOfferID+"/accept", nil, testUserID)

		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			OK          bool          `json:"ok"`
			Offer       model.Offer   `json:"offer"`
			CheckoutURL string        `json:"checkoutUrl"`
			Quote       billing.Quote `json:"quote"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.True(t, body.OK)
		assert.Equal(t, "https://checkout.example/cs_1", body.CheckoutURL)
		assert.Equal(t, model.Pesos(1218), body.Quote.Total)
	})

	errorCases := []struct {
		err  error
		want int
	}{
		{apperrors.Unauthorized("Authentication required"), http.StatusUnauthorized},
		{apperrors.Forbidden("nope"), http.StatusForbidden},
		{apperrors.NotFound("Offer"), http.StatusNotFound},
		{apperrors.InvalidState("Offer is paid"), http.StatusConflict},
		{apperrors.BankAccountRequired(), http.StatusBadRequest},
		{apperrors.UpdateNoRows(), http.StatusConflict},
		{apperrors.ServerMisconfigured("payments"), http.StatusInternalServerError},
	}
	for _, tc := range errorCases {
		t.Run(string(apperrors.GetCode(tc.err)), func(t *testing.T) {
			acceptor := new(mockAcceptor)
			acceptor.On("AcceptOffer", mock.Anything, testOfferID, testUserID).Return(nil, tc.err)
			h := NewOfferHandler(acceptor, new(mockOfferManager))

			rec := serve(h.Routes, http.MethodPost, "/offers/"+testOfferID+"/accept", nil, testUserID)

			assert.Equal(t, tc.want, rec.Code)
			assert.Contains(t, rec.Body.String(), string(apperrors.GetCode(tc.err)))
		})
	}

	t.Run("rejects malformed id", func(t *testing.T) {
		acceptor := new(mockAcceptor)
		h := NewOfferHandler(acceptor, new(mockOfferManager))

		rec := serve(h.Routes, http.MethodPost, "/offers/not-a-uuid/accept", nil, testUserID)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		acceptor.AssertNotCalled(t, "AcceptOffer", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestOfferHandler_AcceptInConversation(t *testing.T) {
	t.Run("debug lists candidates without accepting", func(t *testing.T) {
		acceptor := new(mockAcceptor)
		acceptor.On("ListCandidates", mock.Anything, testConvID, testUserID).
			Return([]model.Offer{{ID: testOfferID, Status: model.OfferStatusPending}}, nil)
		h := NewOfferHandler(acceptor, new(mockOfferManager))

		rec := serve(h.Routes, http.MethodPost, "/conversations/"+testConvID+"/offers/accept?debug=1", nil, testUserID)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"debug":true`)
		assert.Contains(t, rec.Body.String(), testOfferID)
		acceptor.AssertNotCalled(t, "AcceptInConversation", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("accepts the open offer", func(t *testing.T) {
		acceptor := new(mockAcceptor)
		acceptor.On("AcceptInConversation", mock.Anything, testConvID, testUserID).Return(&service.AcceptResult{
			Offer:       &model.Offer{ID: testOfferID},
			CheckoutURL: "https://checkout.example/cs_2",
		}, nil)
		h := NewOfferHandler(acceptor, new(mockOfferManager))

		rec := serve(h.Routes, http.MethodPost, "/conversations/"+testConvID+"/offers/accept", nil, testUserID)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "cs_2")
	})
}

func TestOfferHandler_Create(t *testing.T) {
	t.Run("decodes and forwards", func(t *testing.T) {
		offers := new(mockOfferManager)
		date := time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC)
		offers.On("Create", mock.Anything, testConvID, testUserID, mock.MatchedBy(func(in service.CreateOfferInput) bool {
			return in.Title == "Fix sink" && in.Amount == model.Pesos(1500) &&
				in.ServiceDate != nil && in.ServiceDate.Equal(date) && *in.ServiceTime == "10:30"
		})).Return(&model.Offer{ID: testOfferID}, nil)
		h := NewOfferHandler(new(mockAcceptor), offers)

		body := `{"title":"Fix sink","amount":1500.00,"serviceDate":"2026-11-02","serviceTime":"10:30"}`
		rec := serve(h.Routes, http.MethodPost, "/conversations/"+testConvID+"/offers", strings.NewReader(body), testUserID)

		assert.Equal(t, http.StatusCreated, rec.Code)
		offers.AssertExpectations(t)
	})

	invalid := []struct {
		name string
		body string
	}{
		{"missing title", `{"amount":10}`},
		{"zero amount", `{"title":"x","amount":0}`},
		{"bad date", `{"title":"x","amount":10,"serviceDate":"02/11/2026"}`},
		{"bad time", `{"title":"x","amount":10,"serviceTime":"25:99"}`},
		{"unknown field", `{"title":"x","amount":10,"status":"paid"}`},
		{"not json", `title=x`},
	}
	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			offers := new(mockOfferManager)
			h := NewOfferHandler(new(mockAcceptor), offers)

			rec := serve(h.Routes, http.MethodPost, "/conversations/"+testConvID+"/offers", strings.NewReader(tc.body), testUserID)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
			offers.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestOfferHandler_ListCancelQuote(t *testing.T) {
	offers := new(mockOfferManager)
	offers.On("ListByConversation", mock.Anything, testConvID, testUserID).Return([]model.Offer{}, nil)
	offers.On("Cancel", mock.Anything, testOfferID, testUserID).Return(&model.Offer{ID: testOfferID, Status: model.OfferStatusCancelled}, nil)
	offers.On("Quote", mock.Anything, testOfferID, testUserID).Return(billing.Compute(model.Pesos(5000)), nil)
	h := NewOfferHandler(new(mockAcceptor), offers)

	rec := serve(h.Routes, http.MethodGet, "/conversations/"+testConvID+"/offers", nil, testUserID)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"offers":[]}`, rec.Body.String())

	rec = serve(h.Routes, http.MethodPost, "/offers/"+testOfferID+"/cancel", nil, testUserID)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"cancelled"`)

	rec = serve(h.Routes, http.MethodGet, "/offers/"+testOfferID+"/quote", nil, testUserID)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"amount":5000.00,"fee":250.00,"tax":840.00,"total":6090.00}`, rec.Body.String())
}
