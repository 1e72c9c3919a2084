package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/handypro/marketplace-server/internal/model"
	"github.com/handypro/marketplace-server/internal/sse"
)

type ConversationFinder interface {
	FindByID(ctx context.Context, id string) (*model.Conversation, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, userID string, event sse.Event) error
}

// ChatNotifier pushes chat activity to conversation participants in realtime.
type ChatNotifier struct {
	conversations ConversationFinder
	publisher     EventPublisher
}

func NewChatNotifier(conversations ConversationFinder, publisher EventPublisher) *ChatNotifier {
	return &ChatNotifier{conversations: conversations, publisher: publisher}
}

type chatMessageEvent struct {
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	Text           string `json:"text"`
}

// NotifyChatMessageByConversation notifies every participant except the sender.
func (n *ChatNotifier) NotifyChatMessageByConversation(ctx context.Context, conversationID, senderID, text string) error {
	conv, err := n.conversations.FindByID(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("find conversation: %w", err)
	}
	if conv == nil {
		return fmt.Errorf("conversation %s not found", conversationID)
	}

	data, err := json.Marshal(chatMessageEvent{
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           text,
	})
	if err != nil {
		return err
	}
	event := sse.Event{Type: sse.EventChatMessage, Data: data}

	var errs []error
	for _, userID := range []string{conv.ClientID, conv.ProfessionalID} {
		if userID == senderID {
			continue
		}
		if err := n.publisher.Publish(ctx, userID, event); err != nil {
			errs = append(errs, fmt.Errorf("publish to %s: %w", userID, err))
		}
	}

	if len(errs) == 0 {
		log.Debug().
			Str("conversationId", conversationID).
			Str("senderId", senderID).
			Msg("chat notification published")
	}
	return errors.Join(errs...)
}
