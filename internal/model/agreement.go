package model

import (
	"time"
)

type Agreement struct {
	ID             string          `db:"id" json:"id"`
	RequestID      string          `db:"request_id" json:"requestId"`
	ProfessionalID string          `db:"professional_id" json:"professionalId"`
	OfferID        *string         `db:"offer_id" json:"offerId,omitempty"`
	Amount         Money           `db:"amount" json:"amount"`
	Status         AgreementStatus `db:"status" json:"status"`
	ScheduledDate  *time.Time      `db:"scheduled_date" json:"scheduledDate,omitempty"`
	ScheduledTime  *string         `db:"scheduled_time" json:"scheduledTime,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updatedAt"`
}

type UpsertPaidAgreementParams struct {
	RequestID      string
	ProfessionalID string
	OfferID        string
	Amount         Money
	ScheduledDate  time.Time
	ScheduledTime  string
}
