package model

import (
	"time"
)

type Profile struct {
	ID              string      `db:"id" json:"id"`
	Email           *string     `db:"email" json:"email,omitempty"`
	FullName        *string     `db:"full_name" json:"fullName,omitempty"`
	Role            ProfileRole `db:"role" json:"role"`
	StripeAccountID *string     `db:"stripe_account_id" json:"-"`
	PayoutsEnabled  bool        `db:"payouts_enabled" json:"payoutsEnabled"`
	CreatedAt       time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updatedAt"`
}

// HasPayoutAccount reports whether the professional can receive transfers.
func (p *Profile) HasPayoutAccount() bool {
	return p.StripeAccountID != nil && *p.StripeAccountID != "" && p.PayoutsEnabled
}

func (p *Profile) DisplayName() string {
	if p.FullName != nil && *p.FullName != "" {
		return *p.FullName
	}
	return "there"
}

// User is the authenticated caller resolved from an identity provider token.
type User struct {
	ID    string
	Email string
}
