// Package billing holds the platform fee and tax rules shared by checkout and quote pages.
package billing

import (
	"github.com/handypro/marketplace-server/internal/model"
)

const (
	FeeRatePercent = 5
	TaxRatePercent = 16

	MinFee = model.Money(50_00)
	MaxFee = model.Money(1500_00)
)

// Quote is the breakdown a client pays for an offer.
type Quote struct {
	Amount model.Money `json:"amount"`
	Fee    model.Money `json:"fee"`
	Tax    model.Money `json:"tax"`
	Total  model.Money `json:"total"`
}

// PlatformShare is what the platform keeps: fee plus tax.
func (q Quote) PlatformShare() model.Money {
	return q.Fee + q.Tax
}

// Compute applies the fee and tax rules to amount.
// The fee is rounded to the cent before it is clamped.
func Compute(amount model.Money) Quote {
	fee := percentOf(amount, FeeRatePercent)
	if fee < MinFee {
		fee = MinFee
	}
	if fee > MaxFee {
		fee = MaxFee
	}
	tax := percentOf(amount+fee, TaxRatePercent)

	return Quote{
		Amount: amount,
		Fee:    fee,
		Tax:    tax,
		Total:  amount + fee + tax,
	}
}

// percentOf rounds half up to the cent.
func percentOf(m model.Money, percent int64) model.Money {
	v := int64(m) * percent
	if v >= 0 {
		return model.Money((v + 50) / 100)
	}
	return model.Money(-((-v + 50) / 100))
}
