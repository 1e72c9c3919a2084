package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/handypro/marketplace-server/internal/model"
	"github.com/handypro/marketplace-server/internal/repository"
)

type ChatNotifier interface {
	NotifyChatMessageByConversation(ctx context.Context, conversationID, senderID, text string) error
}

// ViewInvalidator drops cached views after state changes.
type ViewInvalidator interface {
	Invalidate(ctx context.Context, paths ...string) error
}

// Timeline posts system messages into conversations, at most once per payload.
type Timeline struct {
	messages repository.MessageRepository
	chat     ChatNotifier
}

func NewTimeline(messages repository.MessageRepository, chat ChatNotifier) *Timeline {
	return &Timeline{messages: messages, chat: chat}
}

// Post inserts a system message unless one with the same payload exists, then
// notifies the other participants. Returns false when nothing was inserted.
func (t *Timeline) Post(ctx context.Context, conversationID, senderID, body string, payload any) (bool, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("marshal payload: %w", err)
	}

	exists, err := t.messages.ExistsWithPayload(ctx, conversationID, raw)
	if err != nil {
		return false, fmt.Errorf("check existing message: %w", err)
	}
	if exists {
		return false, nil
	}

	msg, err := t.messages.CreateSystem(ctx, model.CreateSystemMessageParams{
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           body,
		Payload:        raw,
	})
	if err != nil {
		return false, fmt.Errorf("create system message: %w", err)
	}
	if msg == nil {
		return false, nil
	}

	if err := t.chat.NotifyChatMessageByConversation(ctx, conversationID, senderID, body); err != nil {
		log.Warn().Err(err).Str("conversationId", conversationID).Msg("chat notification failed")
	}
	return true, nil
}

// PostOfferStatus announces an offer transition.
func (t *Timeline) PostOfferStatus(ctx context.Context, offer *model.Offer, status model.OfferStatus, senderID, body string) (bool, error) {
	return t.Post(ctx, offer.ConversationID, senderID, body, model.NewOfferStatusPayload(offer.ID, status))
}
