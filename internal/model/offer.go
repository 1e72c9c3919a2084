package model

import (
	"time"
)

type Offer struct {
	ID                string      `db:"id" json:"id"`
	ConversationID    string      `db:"conversation_id" json:"conversationId"`
	ClientID          string      `db:"client_id" json:"clientId"`
	ProfessionalID    string      `db:"professional_id" json:"professionalId"`
	CreatedBy         string      `db:"created_by" json:"createdBy"`
	Title             string      `db:"title" json:"title"`
	Description       *string     `db:"description" json:"description,omitempty"`
	Amount            Money       `db:"amount" json:"amount"`
	Currency          string      `db:"currency" json:"currency"`
	Status            OfferStatus `db:"status" json:"status"`
	CheckoutSessionID *string     `db:"checkout_session_id" json:"checkoutSessionId,omitempty"`
	CheckoutURL       *string     `db:"checkout_url" json:"checkoutUrl,omitempty"`
	PaymentIntentID   *string     `db:"payment_intent_id" json:"paymentIntentId,omitempty"`
	ServiceDate       *time.Time  `db:"service_date" json:"serviceDate,omitempty"`
	ServiceTime       *string     `db:"service_time" json:"serviceTime,omitempty"`
	AcceptedAt        *time.Time  `db:"accepted_at" json:"acceptedAt,omitempty"`
	PaidAt            *time.Time  `db:"paid_at" json:"paidAt,omitempty"`
	CreatedAt         time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time   `db:"updated_at" json:"updatedAt"`
}

// IsParticipant reports whether userID is the client or the professional of the offer.
func (o *Offer) IsParticipant(userID string) bool {
	return userID != "" && (o.ClientID == userID || o.ProfessionalID == userID)
}

type CreateOfferParams struct {
	ConversationID string
	ClientID       string
	ProfessionalID string
	CreatedBy      string
	Title          string
	Description    *string
	Amount         Money
	Currency       string
	ServiceDate    *time.Time
	ServiceTime    *string
}
