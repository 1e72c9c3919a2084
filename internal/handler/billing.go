package handler

import (
	"net/http"

	"github.com/handypro/marketplace-server/internal/billing"
	apperrors "github.com/handypro/marketplace-server/internal/errors"
	"github.com/handypro/marketplace-server/internal/model"
)

// BillingQuote serves the public fee calculator: GET /api/billing/quote?amount=1234.50
func BillingQuote(w http.ResponseWriter, r *http.Request) {
	amount, err := model.ParseMoney(r.URL.Query().Get("amount"))
	if err != nil || amount <= 0 {
		writeError(w, r, apperrors.InvalidInput("amount", "must be a positive decimal amount"))
		return
	}
	writeJSON(w, http.StatusOK, billing.Compute(amount))
}
