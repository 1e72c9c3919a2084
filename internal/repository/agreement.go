package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/handypro/marketplace-server/internal/model"
)

type AgreementRepository interface {
	FindByRequestAndProfessional(ctx context.Context, requestID, professionalID string) (*model.Agreement, error)
	UpsertPaid(ctx context.Context, params model.UpsertPaidAgreementParams) (*model.Agreement, error)
	CancelSiblings(ctx context.Context, requestID, professionalID string) (int64, error)
	SetStatusByOffer(ctx context.Context, offerID string, status model.AgreementStatus) (int64, error)
}

type agreementRepo struct {
	db *sqlx.DB
}

func NewAgreementRepository(db *sqlx.DB) AgreementRepository {
	return &agreementRepo{db: db}
}

func (r *agreementRepo) FindByRequestAndProfessional(ctx context.Context, requestID, professionalID string) (*model.Agreement, error) {
	var agreement model.Agreement
	err := r.db.GetContext(ctx, &agreement, `
		SELECT * FROM agreements WHERE request_id = $1 AND professional_id = $2
	`, requestID, professionalID)
	return HandleNotFound(&agreement, err)
}

// UpsertPaid creates the agreement as paid or advances an existing one.
// Agreements already past payment, disputed or cancelled keep their status and amount.
// Schedule fields are only filled when empty.
func (r *agreementRepo) UpsertPaid(ctx context.Context, params model.UpsertPaidAgreementParams) (*model.Agreement, error) {
	var agreement model.Agreement
	err := r.db.GetContext(ctx, &agreement, `
		INSERT INTO agreements (request_id, professional_id, offer_id, amount, status, scheduled_date, scheduled_time)
		VALUES ($1, $2, $3, $4, 'paid', $5, $6)
		ON CONFLICT (request_id, professional_id) DO UPDATE SET
			status = CASE
				WHEN agreements.status IN ('in_progress', 'completed', 'disputed', 'cancelled') THEN agreements.status
				ELSE 'paid'
			END,
			amount = CASE
				WHEN agreements.status IN ('in_progress', 'completed', 'disputed', 'cancelled') THEN agreements.amount
				ELSE EXCLUDED.amount
			END,
			offer_id = COALESCE(agreements.offer_id, EXCLUDED.offer_id),
			scheduled_date = COALESCE(agreements.scheduled_date, EXCLUDED.scheduled_date),
			scheduled_time = COALESCE(agreements.scheduled_time, EXCLUDED.scheduled_time),
			updated_at = NOW()
		RETURNING *
	`, params.RequestID, params.ProfessionalID, params.OfferID, params.Amount,
		params.ScheduledDate, params.ScheduledTime)
	if err != nil {
		return nil, err
	}
	return &agreement, nil
}

// CancelSiblings cancels live agreements on the request held by other professionals.
func (r *agreementRepo) CancelSiblings(ctx context.Context, requestID, professionalID string) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx, `
		UPDATE agreements SET status = 'cancelled', updated_at = NOW()
		WHERE request_id = $1 AND professional_id <> $2
		  AND status IN ('negotiating', 'accepted', 'paid')
	`, requestID, professionalID))
}

func (r *agreementRepo) SetStatusByOffer(ctx context.Context, offerID string, status model.AgreementStatus) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx, `
		UPDATE agreements SET status = $2, updated_at = NOW()
		WHERE offer_id = $1
	`, offerID, status))
}
