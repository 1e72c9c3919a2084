package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/handypro/marketplace-server/internal/errors"
	"github.com/handypro/marketplace-server/internal/middleware"
	"github.com/handypro/marketplace-server/internal/model"
	"github.com/handypro/marketplace-server/internal/util"
)

type DisputeManager interface {
	Open(ctx context.Context, offerID, userID, reason string) (*model.Dispute, error)
	List(ctx context.Context, adminID string, status model.DisputeStatus, limit, offset int) ([]model.Dispute, error)
	Resolve(ctx context.Context, disputeID, adminID string, outcome model.DisputeOutcome, resolution string) (*model.Dispute, error)
}

type DisputeHandler struct {
	disputes DisputeManager
}

func NewDisputeHandler(disputes DisputeManager) *DisputeHandler {
	return &DisputeHandler{disputes: disputes}
}

// Routes are mounted under /api behind authentication.
func (h *DisputeHandler) Routes(r chi.Router) {
	r.Post("/offers/{id}/disputes", h.Open)
	r.Get("/admin/disputes", h.List)
	r.Post("/admin/disputes/{id}/resolve", h.Resolve)
}

type openDisputeRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

func (h *DisputeHandler) Open(w http.ResponseWriter, r *http.Request) {
	offerID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req openDisputeRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}

	dispute, err := h.disputes.Open(r.Context(), offerID, middleware.GetUserID(r.Context()), req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "dispute": dispute})
}

func (h *DisputeHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if !util.IsValidEnum(status, []string{string(model.DisputeStatusOpen), string(model.DisputeStatusResolved)}) {
		writeError(w, r, apperrors.InvalidInput("status", "must be open or resolved"))
		return
	}
	page, err := ParsePagination(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	disputes, err := h.disputes.List(r.Context(), middleware.GetUserID(r.Context()), model.DisputeStatus(status), page.Limit, page.Offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"disputes": disputes,
		"limit":    page.Limit,
		"offset":   page.Offset,
	})
}

type resolveDisputeRequest struct {
	Outcome    string `json:"outcome" validate:"required,oneof=release refund"`
	Resolution string `json:"resolution" validate:"max=2000"`
}

func (h *DisputeHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	disputeID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req resolveDisputeRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}

	dispute, err := h.disputes.Resolve(r.Context(), disputeID, middleware.GetUserID(r.Context()),
		model.DisputeOutcome(req.Outcome), req.Resolution)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "dispute": dispute})
}
