package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/handypro/marketplace-server/internal/model"
)

type RequestRepository interface {
	FindByID(ctx context.Context, id string) (*model.ServiceRequest, error)
	MarkScheduled(ctx context.Context, id, professionalID string, date time.Time, timeOfDay string) (*model.ServiceRequest, error)
}

type requestRepo struct {
	db *sqlx.DB
}

func NewRequestRepository(db *sqlx.DB) RequestRepository {
	return &requestRepo{db: db}
}

func (r *requestRepo) FindByID(ctx context.Context, id string) (*model.ServiceRequest, error) {
	var req model.ServiceRequest
	err := r.db.GetContext(ctx, &req, `SELECT * FROM requests WHERE id = $1`, id)
	return HandleNotFound(&req, err)
}

// MarkScheduled attaches the professional and hides the request from exploration.
// Requests already in progress or completed are left alone.
func (r *requestRepo) MarkScheduled(ctx context.Context, id, professionalID string, date time.Time, timeOfDay string) (*model.ServiceRequest, error) {
	var req model.ServiceRequest
	err := r.db.GetContext(ctx, &req, `
		UPDATE requests SET
			status = 'scheduled',
			professional_id = $2,
			is_explorable = FALSE,
			scheduled_date = COALESCE(scheduled_date, $3),
			scheduled_time = COALESCE(scheduled_time, $4),
			updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('in_progress', 'completed')
		RETURNING *
	`, id, professionalID, date, timeOfDay)
	return HandleNotFound(&req, err)
}
