package model

import (
	"encoding/json"
	"time"
)

type Message struct {
	ID             string          `db:"id" json:"id"`
	ConversationID string          `db:"conversation_id" json:"conversationId"`
	SenderID       string          `db:"sender_id" json:"senderId"`
	Body           string          `db:"body" json:"body"`
	MessageType    MessageType     `db:"message_type" json:"messageType"`
	Payload        json.RawMessage `db:"payload" json:"payload,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
}

// OfferStatusPayload is the structured payload of system messages announcing offer transitions.
type OfferStatusPayload struct {
	Type    string      `json:"type"`
	OfferID string      `json:"offer_id"`
	Status  OfferStatus `json:"status"`
}

func NewOfferStatusPayload(offerID string, status OfferStatus) OfferStatusPayload {
	return OfferStatusPayload{Type: "offer_status", OfferID: offerID, Status: status}
}

type CreateSystemMessageParams struct {
	ConversationID string
	SenderID       string
	Body           string
	Payload        json.RawMessage
}
