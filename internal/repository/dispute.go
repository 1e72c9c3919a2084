package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/handypro/marketplace-server/internal/database"
	"github.com/handypro/marketplace-server/internal/model"
)

var (
	// ErrOfferNotDisputable means the offer is missing or not paid.
	ErrOfferNotDisputable = errors.New("offer is not disputable")
	// ErrDisputeNotOpen means the dispute is missing or already resolved.
	ErrDisputeNotOpen = errors.New("dispute is not open")
)

type DisputeRepository interface {
	Open(ctx context.Context, offerID, userID, reason string) (*model.Dispute, error)
	FindByID(ctx context.Context, id string) (*model.Dispute, error)
	ListByStatus(ctx context.Context, status model.DisputeStatus, limit, offset int) ([]model.Dispute, error)
	Resolve(ctx context.Context, params model.ResolveDisputeParams) (*model.Dispute, error)
}

type disputeRepo struct {
	db *database.DB
}

func NewDisputeRepository(db *database.DB) DisputeRepository {
	return &disputeRepo{db: db}
}

// Open records a dispute and freezes the offer and its agreement as disputed.
func (r *disputeRepo) Open(ctx context.Context, offerID, userID, reason string) (*model.Dispute, error) {
	var dispute model.Dispute
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE offers SET status = 'disputed', updated_at = NOW()
			WHERE id = $1 AND status = 'paid'
		`, offerID)
		if err != nil {
			return fmt.Errorf("mark offer disputed: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return ErrOfferNotDisputable
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE agreements SET status = 'disputed', updated_at = NOW()
			WHERE offer_id = $1 AND status NOT IN ('completed', 'cancelled')
		`, offerID); err != nil {
			return fmt.Errorf("mark agreement disputed: %w", err)
		}

		return tx.GetContext(ctx, &dispute, `
			INSERT INTO disputes (offer_id, opened_by, reason)
			VALUES ($1, $2, $3)
			RETURNING *
		`, offerID, userID, reason)
	})
	if err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (r *disputeRepo) FindByID(ctx context.Context, id string) (*model.Dispute, error) {
	var dispute model.Dispute
	err := r.db.GetContext(ctx, &dispute, `SELECT * FROM disputes WHERE id = $1`, id)
	return HandleNotFound(&dispute, err)
}

func (r *disputeRepo) ListByStatus(ctx context.Context, status model.DisputeStatus, limit, offset int) ([]model.Dispute, error) {
	disputes := []model.Dispute{}
	err := r.db.SelectContext(ctx, &disputes, `
		SELECT * FROM disputes
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`, status, limit, offset)
	return disputes, err
}

// Resolve closes an open dispute. Release returns the offer and agreement to paid,
// refund cancels both.
func (r *disputeRepo) Resolve(ctx context.Context, params model.ResolveDisputeParams) (*model.Dispute, error) {
	offerStatus := model.OfferStatusPaid
	agreementStatus := model.AgreementStatusPaid
	if params.Outcome == model.DisputeOutcomeRefund {
		offerStatus = model.OfferStatusCancelled
		agreementStatus = model.AgreementStatusCancelled
	}

	var dispute model.Dispute
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &dispute, `
			UPDATE disputes SET
				status = 'resolved', outcome = $2, resolution = $3, resolved_by = $4,
				resolved_at = NOW(), updated_at = NOW()
			WHERE id = $1 AND status = 'open'
			RETURNING *
		`, params.DisputeID, params.Outcome, params.Resolution, params.AdminID)
		if found, err := HandleNotFound(&dispute, err); err != nil {
			return fmt.Errorf("resolve dispute: %w", err)
		} else if found == nil {
			return ErrDisputeNotOpen
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE offers SET status = $2, updated_at = NOW()
			WHERE id = $1 AND status = 'disputed'
		`, dispute.OfferID, offerStatus); err != nil {
			return fmt.Errorf("update offer: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE agreements SET status = $2, updated_at = NOW()
			WHERE offer_id = $1 AND status = 'disputed'
		`, dispute.OfferID, agreementStatus); err != nil {
			return fmt.Errorf("update agreement: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dispute, nil
}
