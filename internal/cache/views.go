// Package cache stores rendered JSON views in Redis so hot read paths skip Postgres.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	redisclient "github.com/handypro/marketplace-server/internal/redis"
)

// View paths. Invalidation uses the same helpers as lookup.
func ConversationOffersPath(conversationID string) string {
	return fmt.Sprintf("/conversations/%s/offers", conversationID)
}

func OfferPath(offerID string) string {
	return fmt.Sprintf("/offers/%s", offerID)
}

func RequestPath(requestID string) string {
	return fmt.Sprintf("/requests/%s", requestID)
}

type ViewCache struct {
	client *redisclient.Client
	ttl    time.Duration
}

func NewViewCache(client *redisclient.Client, ttl time.Duration) *ViewCache {
	return &ViewCache{client: client, ttl: ttl}
}

// Get returns the cached view. Redis failures count as a miss.
func (c *ViewCache) Get(ctx context.Context, path string) ([]byte, bool) {
	data, err := c.client.Get(ctx, redisclient.ViewKey(path)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("path", path).Msg("view cache read failed")
		}
		return nil, false
	}
	return data, true
}

func (c *ViewCache) Set(ctx context.Context, path string, data []byte) {
	if err := c.client.Set(ctx, redisclient.ViewKey(path), data, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("view cache write failed")
	}
}

// Invalidate drops cached views for paths.
func (c *ViewCache) Invalidate(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	keys := make([]string, len(paths))
	for i, p := range paths {
		keys[i] = redisclient.ViewKey(p)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate views: %w", err)
	}
	return nil
}
