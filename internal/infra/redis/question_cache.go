package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"color-quiz-service/internal/app"
	"color-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const catalogKey = "quiz:catalog"

// QuestionCache keeps question content in Redis (one JSON value per question) and falls back
// to the bank on a miss, so every instance shares one warm copy.
//
//	SET quiz:question:{questionID} {json} EX ttl
//	SET quiz:catalog {json} EX ttl
type QuestionCache struct {
	client *redis.Client
	bank   app.QuestionBank
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewQuestionCache(client *redis.Client, bank app.QuestionBank, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		bank:   bank,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) Questions(ctx context.Context, ids []string) (map[string]domain.Question, error) {
	out, missing := c.lookup(ctx, ids)
	if len(missing) == 0 {
		return out, nil
	}

	sort.Strings(missing)
	result, err, _ := c.sf.Do("q:"+strings.Join(missing, ","), func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		found, stillMissing := c.lookup(ctx, missing)
		if len(stillMissing) == 0 {
			return found, nil
		}
		loaded, err := c.bank.Questions(ctx, stillMissing)
		if err != nil {
			return nil, err
		}

		ttl := c.ttlWithJitter()
		pipe := c.client.Pipeline()
		for id, q := range loaded {
			found[id] = q
			raw, err := json.Marshal(q)
			if err != nil {
				continue
			}
			pipe.Set(ctx, questionKey(id), raw, ttl)
		}
		// cache writes are best effort; the bank answer is already in hand
		_, _ = pipe.Exec(ctx)
		return found, nil
	})
	if err != nil {
		return nil, err
	}
	for id, q := range result.(map[string]domain.Question) {
		out[id] = q
	}
	return out, nil
}

func (c *QuestionCache) Catalog(ctx context.Context) ([]domain.QuestionRef, error) {
	if refs, ok := c.cachedCatalog(ctx); ok {
		return refs, nil
	}
	result, err, _ := c.sf.Do("catalog", func() (interface{}, error) {
		if refs, ok := c.cachedCatalog(ctx); ok {
			return refs, nil
		}
		refs, err := c.bank.Catalog(ctx)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(refs); err == nil {
			_ = c.client.Set(ctx, catalogKey, raw, c.ttlWithJitter()).Err()
		}
		return refs, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.QuestionRef), nil
}

func (c *QuestionCache) cachedCatalog(ctx context.Context) ([]domain.QuestionRef, bool) {
	raw, err := c.client.Get(ctx, catalogKey).Bytes()
	if err != nil {
		return nil, false
	}
	var refs []domain.QuestionRef
	if err := json.Unmarshal(raw, &refs); err != nil {
		return nil, false
	}
	return refs, true
}

// lookup treats Redis errors and undecodable entries as misses.
func (c *QuestionCache) lookup(ctx context.Context, ids []string) (map[string]domain.Question, []string) {
	out := make(map[string]domain.Question, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = questionKey(id)
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return out, append([]string(nil), ids...)
	}

	var missing []string
	for i, id := range ids {
		raw, ok := values[i].(string)
		if !ok {
			missing = append(missing, id)
			continue
		}
		var q domain.Question
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			missing = append(missing, id)
			continue
		}
		out[id] = q
	}
	return out, missing
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

func questionKey(id string) string {
	return "quiz:question:" + id
}
