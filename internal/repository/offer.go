package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/handypro/marketplace-server/internal/database"
	"github.com/handypro/marketplace-server/internal/model"
)

// ErrAtomicAcceptUnavailable is returned when the accept_offer stored function is not installed.
var ErrAtomicAcceptUnavailable = errors.New("accept_offer function unavailable")

// AcceptCode is the result code of the accept_offer stored function.
type AcceptCode string

const (
	AcceptCodeOK                  AcceptCode = "ok"
	AcceptCodeOfferNotFound       AcceptCode = "offer_not_found"
	AcceptCodeForbidden           AcceptCode = "forbidden"
	AcceptCodeInvalidState        AcceptCode = "invalid_state"
	AcceptCodeBankAccountRequired AcceptCode = "bank_account_required"
)

type OfferRepository interface {
	FindByID(ctx context.Context, id string) (*model.Offer, error)
	FindOpenByConversation(ctx context.Context, conversationID string) (*model.Offer, error)
	ListByConversation(ctx context.Context, conversationID string) ([]model.Offer, error)
	Create(ctx context.Context, params model.CreateOfferParams) (*model.Offer, error)
	Cancel(ctx context.Context, id string) (*model.Offer, error)
	AcceptAtomic(ctx context.Context, id, actorID string) (AcceptCode, error)
	AcceptConditional(ctx context.Context, id, actorID string) (*model.Offer, error)
	RevertAcceptance(ctx context.Context, id string) (bool, error)
	SetCheckout(ctx context.Context, id, sessionID, checkoutURL string) (*model.Offer, error)
	MarkPaid(ctx context.Context, id string, paymentRef *string) (*model.Offer, error)
	SetStatus(ctx context.Context, id string, from []model.OfferStatus, to model.OfferStatus) (*model.Offer, error)
	FindStaleCheckouts(ctx context.Context, acceptedBefore time.Time, limit int) ([]model.Offer, error)
	ExpireCheckout(ctx context.Context, id, sessionID string) (bool, error)
}

type offerRepo struct {
	db *sqlx.DB
}

func NewOfferRepository(db *sqlx.DB) OfferRepository {
	return &offerRepo{db: db}
}

func (r *offerRepo) FindByID(ctx context.Context, id string) (*model.Offer, error) {
	var offer model.Offer
	err := r.db.GetContext(ctx, &offer, `SELECT * FROM offers WHERE id = $1`, id)
	return HandleNotFound(&offer, err)
}

func (r *offerRepo) FindOpenByConversation(ctx context.Context, conversationID string) (*model.Offer, error) {
	var offer model.Offer
	err := r.db.GetContext(ctx, &offer, `
		SELECT * FROM offers
		WHERE conversation_id = $1 AND status IN ('pending', 'sent')
		ORDER BY created_at DESC
		LIMIT 1
	`, conversationID)
	return HandleNotFound(&offer, err)
}

func (r *offerRepo) ListByConversation(ctx context.Context, conversationID string) ([]model.Offer, error) {
	offers := []model.Offer{}
	err := r.db.SelectContext(ctx, &offers, `
		SELECT * FROM offers
		WHERE conversation_id = $1
		ORDER BY created_at DESC
	`, conversationID)
	return offers, err
}

func (r *offerRepo) Create(ctx context.Context, params model.CreateOfferParams) (*model.Offer, error) {
	var offer model.Offer
	err := r.db.GetContext(ctx, &offer, `
		INSERT INTO offers (conversation_id, client_id, professional_id, created_by, title, description,
			amount, currency, service_date, service_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING *
	`, params.ConversationID, params.ClientID, params.ProfessionalID, params.CreatedBy, params.Title,
		params.Description, params.Amount, params.Currency, params.ServiceDate, params.ServiceTime)
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

// Cancel cancels an open offer. Returns nil when the offer is not open.
func (r *offerRepo) Cancel(ctx context.Context, id string) (*model.Offer, error) {
	var offer model.Offer
	err := r.db.GetContext(ctx, &offer, `
		UPDATE offers SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'sent')
		RETURNING *
	`, id)
	return HandleNotFound(&offer, err)
}

func (r *offerRepo) AcceptAtomic(ctx context.Context, id, actorID string) (AcceptCode, error) {
	var code string
	err := r.db.GetContext(ctx, &code, `SELECT accept_offer($1::uuid, $2::uuid)`, id, actorID)
	if err != nil {
		if database.IsUndefinedFunction(err) {
			return "", ErrAtomicAcceptUnavailable
		}
		return "", fmt.Errorf("call accept_offer: %w", err)
	}
	return AcceptCode(code), nil
}

// AcceptConditional moves an open offer owned by actorID to accepted in one statement.
// Returns nil when no row matched.
func (r *offerRepo) AcceptConditional(ctx context.Context, id, actorID string) (*model.Offer, error) {
	var offer model.Offer
	err := r.db.GetContext(ctx, &offer, `
		UPDATE offers SET status = 'accepted', accepted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND professional_id = $2 AND status IN ('pending', 'sent')
		RETURNING *
	`, id, actorID)
	return HandleNotFound(&offer, err)
}

// RevertAcceptance returns an accepted offer to pending while no checkout session is attached.
func (r *offerRepo) RevertAcceptance(ctx context.Context, id string) (bool, error) {
	return transitioned(r.db.ExecContext(ctx, `
		UPDATE offers SET status = 'pending', accepted_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'accepted' AND checkout_session_id IS NULL
	`, id))
}

func (r *offerRepo) SetCheckout(ctx context.Context, id, sessionID, checkoutURL string) (*model.Offer, error) {
	var offer model.Offer
	err := r.db.GetContext(ctx, &offer, `
		UPDATE offers SET checkout_session_id = $2, checkout_url = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'accepted'
		RETURNING *
	`, id, sessionID, checkoutURL)
	return HandleNotFound(&offer, err)
}

// MarkPaid records a confirmed payment. It returns nil when the offer is missing
// or was cancelled or disputed.
func (r *offerRepo) MarkPaid(ctx context.Context, id string, paymentRef *string) (*model.Offer, error) {
	var offer model.Offer
	err := r.db.GetContext(ctx, &offer, `
		UPDATE offers SET
			status = 'paid',
			checkout_session_id = NULL,
			checkout_url = NULL,
			payment_intent_id = COALESCE($2, payment_intent_id),
			paid_at = COALESCE(paid_at, NOW()),
			updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'sent', 'accepted', 'paid')
		RETURNING *
	`, id, paymentRef)
	return HandleNotFound(&offer, err)
}

// SetStatus moves the offer to `to` only when its current status is one of `from`.
func (r *offerRepo) SetStatus(ctx context.Context, id string, from []model.OfferStatus, to model.OfferStatus) (*model.Offer, error) {
	statuses := make([]string, len(from))
	for i, s := range from {
		statuses[i] = string(s)
	}

	var offer model.Offer
	err := r.db.GetContext(ctx, &offer, `
		UPDATE offers SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = ANY($2)
		RETURNING *
	`, id, pq.Array(statuses), to)
	return HandleNotFound(&offer, err)
}

func (r *offerRepo) FindStaleCheckouts(ctx context.Context, acceptedBefore time.Time, limit int) ([]model.Offer, error) {
	offers := []model.Offer{}
	err := r.db.SelectContext(ctx, &offers, `
		SELECT * FROM offers
		WHERE status = 'accepted' AND checkout_session_id IS NOT NULL AND accepted_at < $1
		ORDER BY accepted_at ASC
		LIMIT $2
	`, acceptedBefore, limit)
	return offers, err
}

// ExpireCheckout releases an accepted offer whose checkout session lapsed back to pending.
func (r *offerRepo) ExpireCheckout(ctx context.Context, id, sessionID string) (bool, error) {
	return transitioned(r.db.ExecContext(ctx, `
		UPDATE offers SET status = 'pending', checkout_session_id = NULL, checkout_url = NULL,
			accepted_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'accepted' AND checkout_session_id = $2
	`, id, sessionID))
}
