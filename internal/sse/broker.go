package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	redisclient "github.com/handypro/marketplace-server/internal/redis"
)

const (
	HeartbeatInterval = 30 * time.Second
	clientBufferSize  = 64
)

// Event types pushed to browsers.
const (
	EventChatMessage = "chat_message"
)

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type Client struct {
	UserID string
	Events chan Event
	Done   chan struct{}
}

type userSubscription struct {
	clients map[*Client]struct{}
	cancel  context.CancelFunc
}

// Broker fans out per-user events published through Redis to local SSE clients.
type Broker struct {
	redis  *redisclient.Client
	users  map[string]*userSubscription
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		redis:  redisClient,
		users:  make(map[string]*userSubscription),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (b *Broker) Subscribe(userID string) *Client {
	client := &Client{
		UserID: userID,
		Events: make(chan Event, clientBufferSize),
		Done:   make(chan struct{}),
	}

	b.mu.Lock()
	sub, ok := b.users[userID]
	if !ok {
		subCtx, cancel := context.WithCancel(b.ctx)
		sub = &userSubscription{clients: make(map[*Client]struct{}), cancel: cancel}
		b.users[userID] = sub
		go b.subscribeToRedis(subCtx, userID)
	}
	sub.clients[client] = struct{}{}
	clientCount := len(sub.clients)
	b.mu.Unlock()

	log.Debug().
		Str("userId", userID).
		Int("clientCount", clientCount).
		Msg("sse client subscribed")

	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.users[client.UserID]
	if !ok {
		return
	}
	if _, ok := sub.clients[client]; !ok {
		return
	}

	delete(sub.clients, client)
	close(client.Done)

	if len(sub.clients) == 0 {
		sub.cancel()
		delete(b.users, client.UserID)
	}

	log.Debug().
		Str("userId", client.UserID).
		Int("clientCount", len(sub.clients)).
		Msg("sse client unsubscribed")
}

// Publish sends an event to every instance holding connections for userID.
func (b *Broker) Publish(ctx context.Context, userID string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.redis.Publish(ctx, redisclient.UserEventsChannel(userID), data).Err()
}

func (b *Broker) subscribeToRedis(ctx context.Context, userID string) {
	channel := redisclient.UserEventsChannel(userID)
	pubsub := b.redis.Subscribe(ctx, channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Str("channel", channel).Msg("failed to unmarshal event")
				continue
			}

			b.broadcast(userID, event)
		}
	}
}

func (b *Broker) broadcast(userID string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	sub, ok := b.users[userID]
	if !ok {
		return
	}
	for client := range sub.clients {
		select {
		case client.Events <- event:
		default:
			log.Warn().
				Str("userId", userID).
				Msg("client event buffer full, dropping event")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.users {
		for client := range sub.clients {
			close(client.Done)
		}
	}
	b.users = make(map[string]*userSubscription)
}

func (b *Broker) ClientCount(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if sub, ok := b.users[userID]; ok {
		return len(sub.clients)
	}
	return 0
}
