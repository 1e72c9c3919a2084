package handler

import (
	"net/http"

	"github.com/handypro/marketplace-server/internal/service"
)

type classifyRequest struct {
	Text string `json:"text" validate:"required,max=5000"`
}

func Classify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, service.Classify(req.Text))
}
