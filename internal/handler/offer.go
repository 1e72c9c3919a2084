package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/handypro/marketplace-server/internal/billing"
	apperrors "github.com/handypro/marketplace-server/internal/errors"
	"github.com/handypro/marketplace-server/internal/middleware"
	"github.com/handypro/marketplace-server/internal/model"
	"github.com/handypro/marketplace-server/internal/service"
)

type Acceptor interface {
	AcceptOffer(ctx context.Context, offerID, actingUserID string) (*service.AcceptResult, error)
	AcceptInConversation(ctx context.Context, conversationID, actingUserID string) (*service.AcceptResult, error)
	ListCandidates(ctx context.Context, conversationID, userID string) ([]model.Offer, error)
}

type OfferManager interface {
	Create(ctx context.Context, conversationID, userID string, in service.CreateOfferInput) (*model.Offer, error)
	Cancel(ctx context.Context, offerID, userID string) (*model.Offer, error)
	ListByConversation(ctx context.Context, conversationID, userID string) ([]model.Offer, error)
	Quote(ctx context.Context, offerID, userID string) (billing.Quote, error)
}

type OfferHandler struct {
	acceptor Acceptor
	offers   OfferManager
}

func NewOfferHandler(acceptor Acceptor, offers OfferManager) *OfferHandler {
	return &OfferHandler{acceptor: acceptor, offers: offers}
}

// Routes are mounted under /api behind authentication.
func (h *OfferHandler) Routes(r chi.Router) {
	r.Post("/offers/{id}/accept", h.Accept)
	r.Post("/offers/{id}/cancel", h.Cancel)
	r.Get("/offers/{id}/quote", h.Quote)
	r.Post("/conversations/{id}/offers/accept", h.AcceptInConversation)
	r.Post("/conversations/{id}/offers", h.Create)
	r.Get("/conversations/{id}/offers", h.List)
}

type acceptResponse struct {
	OK          bool          `json:"ok"`
	Offer       *model.Offer  `json:"offer"`
	CheckoutURL string        `json:"checkoutUrl"`
	Quote       billing.Quote `json:"quote"`
}

func renderAccept(w http.ResponseWriter, res *service.AcceptResult) {
	writeJSON(w, http.StatusOK, acceptResponse{
		OK:          true,
		Offer:       res.Offer,
		CheckoutURL: res.CheckoutURL,
		Quote:       res.Quote,
	})
}

func (h *OfferHandler) Accept(w http.ResponseWriter, r *http.Request) {
	offerID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.acceptor.AcceptOffer(r.Context(), offerID, middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	renderAccept(w, res)
}

func (h *OfferHandler) AcceptInConversation(w http.ResponseWriter, r *http.Request) {
	conversationID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	userID := middleware.GetUserID(r.Context())

	if r.URL.Query().Get("debug") == "1" {
		offers, err := h.acceptor.ListCandidates(r.Context(), conversationID, userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":             true,
			"debug":          true,
			"conversationId": conversationID,
			"candidates":     offers,
		})
		return
	}

	res, err := h.acceptor.AcceptInConversation(r.Context(), conversationID, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	renderAccept(w, res)
}

type createOfferRequest struct {
	Title       string      `json:"title" validate:"required,max=200"`
	Description *string     `json:"description" validate:"omitempty,max=4000"`
	Amount      model.Money `json:"amount" validate:"gt=0"`
	Currency    string      `json:"currency" validate:"omitempty,len=3,alpha"`
	ServiceDate *string     `json:"serviceDate" validate:"omitempty,datetime=2006-01-02"`
	ServiceTime *string     `json:"serviceTime" validate:"omitempty,datetime=15:04"`
}

func (h *OfferHandler) Create(w http.ResponseWriter, r *http.Request) {
	conversationID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req createOfferRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}

	in := service.CreateOfferInput{
		Title:       req.Title,
		Description: req.Description,
		Amount:      req.Amount,
		Currency:    req.Currency,
		ServiceTime: req.ServiceTime,
	}
	if req.ServiceDate != nil {
		d, err := time.Parse(time.DateOnly, *req.ServiceDate)
		if err != nil {
			writeError(w, r, apperrors.InvalidInput("serviceDate", "must be YYYY-MM-DD"))
			return
		}
		in.ServiceDate = &d
	}

	offer, err := h.offers.Create(r.Context(), conversationID, middleware.GetUserID(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "offer": offer})
}

func (h *OfferHandler) List(w http.ResponseWriter, r *http.Request) {
	conversationID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	offers, err := h.offers.ListByConversation(r.Context(), conversationID, middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"offers": offers})
}

func (h *OfferHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	offerID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	offer, err := h.offers.Cancel(r.Context(), offerID, middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "offer": offer})
}

func (h *OfferHandler) Quote(w http.ResponseWriter, r *http.Request) {
	offerID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	quote, err := h.offers.Quote(r.Context(), offerID, middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}
