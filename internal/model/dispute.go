package model

import (
	"time"
)

type Dispute struct {
	ID         string          `db:"id" json:"id"`
	OfferID    string          `db:"offer_id" json:"offerId"`
	OpenedBy   string          `db:"opened_by" json:"openedBy"`
	Reason     string          `db:"reason" json:"reason"`
	Status     DisputeStatus   `db:"status" json:"status"`
	Outcome    *DisputeOutcome `db:"outcome" json:"outcome,omitempty"`
	Resolution *string         `db:"resolution" json:"resolution,omitempty"`
	ResolvedBy *string         `db:"resolved_by" json:"resolvedBy,omitempty"`
	ResolvedAt *time.Time      `db:"resolved_at" json:"resolvedAt,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updatedAt"`
}

type ResolveDisputeParams struct {
	DisputeID  string
	AdminID    string
	Outcome    DisputeOutcome
	Resolution string
}
