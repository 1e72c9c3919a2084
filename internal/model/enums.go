package model

type OfferStatus string

const (
	OfferStatusPending   OfferStatus = "pending"
	OfferStatusSent      OfferStatus = "sent" // legacy alias of pending
	OfferStatusAccepted  OfferStatus = "accepted"
	OfferStatusPaid      OfferStatus = "paid"
	OfferStatusCancelled OfferStatus = "cancelled"
	OfferStatusDisputed  OfferStatus = "disputed"
)

// IsOpen reports whether the offer can still be accepted or cancelled.
func (s OfferStatus) IsOpen() bool {
	return s == OfferStatusPending || s == OfferStatusSent
}

// Payable reports whether a confirmed payment may move the offer to paid.
// Cancelled and disputed offers never go back.
func (s OfferStatus) Payable() bool {
	switch s {
	case OfferStatusPending, OfferStatusSent, OfferStatusAccepted, OfferStatusPaid:
		return true
	}
	return false
}

type AgreementStatus string

const (
	AgreementStatusNegotiating AgreementStatus = "negotiating"
	AgreementStatusAccepted    AgreementStatus = "accepted"
	AgreementStatusPaid        AgreementStatus = "paid"
	AgreementStatusInProgress  AgreementStatus = "in_progress"
	AgreementStatusCompleted   AgreementStatus = "completed"
	AgreementStatusCancelled   AgreementStatus = "cancelled"
	AgreementStatusDisputed    AgreementStatus = "disputed"
)

type RequestStatus string

const (
	RequestStatusActive     RequestStatus = "active"
	RequestStatusScheduled  RequestStatus = "scheduled"
	RequestStatusInProgress RequestStatus = "in_progress"
	RequestStatusCompleted  RequestStatus = "completed"
	RequestStatusCancelled  RequestStatus = "cancelled"
)

type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeSystem MessageType = "system"
)

type ProfileRole string

const (
	ProfileRoleClient ProfileRole = "client"
	ProfileRolePro    ProfileRole = "pro"
	ProfileRoleAdmin  ProfileRole = "admin"
)

type DisputeStatus string

const (
	DisputeStatusOpen     DisputeStatus = "open"
	DisputeStatusResolved DisputeStatus = "resolved"
)

type DisputeOutcome string

const (
	DisputeOutcomeRelease DisputeOutcome = "release"
	DisputeOutcomeRefund  DisputeOutcome = "refund"
)
