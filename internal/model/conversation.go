package model

import (
	"time"
)

type Conversation struct {
	ID             string    `db:"id" json:"id"`
	RequestID      *string   `db:"request_id" json:"requestId,omitempty"`
	ClientID       string    `db:"client_id" json:"clientId"`
	ProfessionalID string    `db:"professional_id" json:"professionalId"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

// IsParticipant reports whether userID takes part in the conversation.
func (c *Conversation) IsParticipant(userID string) bool {
	return userID != "" && (c.ClientID == userID || c.ProfessionalID == userID)
}

// Counterpart returns the other participant, or "" when userID is not a participant.
func (c *Conversation) Counterpart(userID string) string {
	switch userID {
	case c.ClientID:
		return c.ProfessionalID
	case c.ProfessionalID:
		return c.ClientID
	}
	return ""
}
