package handler

import (
	"net/http"
	"strconv"

	apperrors "github.com/handypro/marketplace-server/internal/errors"
)

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

type PaginationParams struct {
	Limit  int
	Offset int
}

// ParsePagination reads limit and offset. Missing values take defaults and
// limits above MaxLimit are clamped; malformed or negative values are rejected.
func ParsePagination(r *http.Request) (PaginationParams, error) {
	page := PaginationParams{Limit: DefaultLimit}
	q := r.URL.Query()

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return page, apperrors.InvalidInput("limit", "must be a positive integer")
		}
		page.Limit = min(limit, MaxLimit)
	}

	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return page, apperrors.InvalidInput("offset", "must be a non-negative integer")
		}
		page.Offset = offset
	}

	return page, nil
}
