package repository

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"

	"github.com/handypro/marketplace-server/internal/model"
)

type MessageRepository interface {
	ExistsWithPayload(ctx context.Context, conversationID string, payload json.RawMessage) (bool, error)
	CreateSystem(ctx context.Context, params model.CreateSystemMessageParams) (*model.Message, error)
}

type messageRepo struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) MessageRepository {
	return &messageRepo{db: db}
}

// ExistsWithPayload reports whether the conversation holds a message whose payload contains payload.
func (r *messageRepo) ExistsWithPayload(ctx context.Context, conversationID string, payload json.RawMessage) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM messages
			WHERE conversation_id = $1 AND payload @> $2::jsonb
		)
	`, conversationID, string(payload))
	return exists, err
}

// CreateSystem inserts a system message. Returns nil when an identical offer
// status message already exists.
func (r *messageRepo) CreateSystem(ctx context.Context, params model.CreateSystemMessageParams) (*model.Message, error) {
	var msg model.Message
	err := r.db.GetContext(ctx, &msg, `
		INSERT INTO messages (conversation_id, sender_id, body, message_type, payload)
		VALUES ($1, $2, $3, 'system', $4::jsonb)
		ON CONFLICT DO NOTHING
		RETURNING *
	`, params.ConversationID, params.SenderID, params.Body, string(params.Payload))
	return HandleNotFound(&msg, err)
}
