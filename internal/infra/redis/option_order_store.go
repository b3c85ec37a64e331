package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"color-quiz-service/internal/app"
	"color-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// OptionOrderCache serves option permutations from Redis in front of the durable attempt store.
// The backing store decides which permutation survives; an expired or evicted key is reloaded
// from it, never regenerated.
//
//	SET quiz:attempt:{scope}:order:{questionID} {json} EX ttl
type OptionOrderCache struct {
	client  *redis.Client
	backing app.OptionOrderStore
	ttl     time.Duration
}

func NewOptionOrderCache(client *redis.Client, backing app.OptionOrderStore, ttl time.Duration) *OptionOrderCache {
	return &OptionOrderCache{client: client, backing: backing, ttl: ttl}
}

func (c *OptionOrderCache) GetOptionOrder(ctx context.Context, scope, questionID string) ([]string, error) {
	key := orderKey(scope, questionID)
	raw, err := c.client.Get(ctx, key).Result()
	if err == nil {
		if ids, err := decodeOrder(raw); err == nil {
			return ids, nil
		}
	}
	// Redis errors are treated as misses.
	ids, err := c.backing.GetOptionOrder(ctx, scope, questionID)
	if err != nil || ids == nil {
		return ids, err
	}
	c.remember(ctx, key, ids)
	return ids, nil
}

func (c *OptionOrderCache) SaveOptionOrder(ctx context.Context, order domain.OptionOrder) ([]string, error) {
	kept, err := c.backing.SaveOptionOrder(ctx, order)
	if err != nil {
		return nil, err
	}
	c.remember(ctx, orderKey(order.Scope, order.QuestionID), kept)
	return kept, nil
}

func (c *OptionOrderCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *OptionOrderCache) remember(ctx context.Context, key string, ids []string) {
	raw, err := json.Marshal(ids)
	if err != nil {
		return
	}
	ttl := c.ttl
	if ttl < 0 {
		ttl = 0
	}
	_ = c.client.Set(ctx, key, raw, ttl).Err()
}

func decodeOrder(raw string) ([]string, error) {
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("decode option order: %w", err)
	}
	if ids == nil {
		return nil, errors.New("decode option order: empty")
	}
	return ids, nil
}

func orderKey(scope, questionID string) string {
	return "quiz:attempt:" + scope + ":order:" + questionID
}
