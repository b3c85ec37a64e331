package memory

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"color-quiz-service/internal/app"
	"color-quiz-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuestionCache caches questions with TTL to avoid repeated bank hits.
type QuestionCache struct {
	bank  app.QuestionBank
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand
	rndMu sync.Mutex

	mu      sync.RWMutex
	cache   map[string]cachedQuestion
	catalog *cachedCatalog
}

type cachedQuestion struct {
	question  domain.Question
	expiresAt time.Time
}

type cachedCatalog struct {
	refs      []domain.QuestionRef
	expiresAt time.Time
}

func NewQuestionCache(bank app.QuestionBank, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		bank:  bank,
		ttl:   ttl,
		clock: time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache: make(map[string]cachedQuestion),
	}
}

func (c *QuestionCache) Questions(ctx context.Context, ids []string) (map[string]domain.Question, error) {
	out, missing := c.lookup(ids)
	if len(missing) == 0 {
		return out, nil
	}

	sort.Strings(missing)
	result, err, _ := c.sf.Do("q:"+strings.Join(missing, ","), func() (interface{}, error) {
		// Re-check in case another goroutine filled the cache.
		found, stillMissing := c.lookup(missing)
		if len(stillMissing) == 0 {
			return found, nil
		}
		loaded, err := c.bank.Questions(ctx, stillMissing)
		if err != nil {
			return nil, err
		}
		expiresAt := c.clock().Add(c.ttlWithJitter())
		c.mu.Lock()
		for id, q := range loaded {
			c.cache[id] = cachedQuestion{question: q, expiresAt: expiresAt}
			found[id] = q
		}
		c.mu.Unlock()
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
	now := c.clock()
	c.mu.RLock()
	if c.catalog != nil && c.catalog.expiresAt.After(now) {
		refs := c.catalog.refs
		c.mu.RUnlock()
		return refs, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do("catalog", func() (interface{}, error) {
		refs, err := c.bank.Catalog(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.catalog = &cachedCatalog{refs: refs, expiresAt: c.clock().Add(c.ttlWithJitter())}
		c.mu.Unlock()
		return refs, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.QuestionRef), nil
}

func (c *QuestionCache) lookup(ids []string) (map[string]domain.Question, []string) {
	now := c.clock()
	out := make(map[string]domain.Question, len(ids))
	var missing []string
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, id := range ids {
		if entry, ok := c.cache[id]; ok && entry.expiresAt.After(now) {
			out[id] = entry.question
			continue
		}
		missing = append(missing, id)
	}
	return out, missing
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
