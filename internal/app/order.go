package app

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"color-quiz-service/internal/domain"
	"go.uber.org/zap"
)

// RandShuffler is a goroutine-safe Fisher-Yates shuffler backed by math/rand.
type RandShuffler struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandShuffler() *RandShuffler {
	return &RandShuffler{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (s *RandShuffler) Shuffle(n int, swap func(i, j int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rnd.Shuffle(n, swap)
}

// OrderService gives every (scope, question) its own option permutation, generated on first
// access and read back from the store afterwards.
type OrderService struct {
	orders   OptionOrderStore
	shuffler Shuffler
	logger   *zap.Logger
}

func NewOrderService(orders OptionOrderStore, shuffler Shuffler, logger *zap.Logger) *OrderService {
	if shuffler == nil {
		shuffler = NewRandShuffler()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{orders: orders, shuffler: shuffler, logger: logger}
}

// OrderedOptions returns options in the scope's persisted order, creating that order if needed.
func (s *OrderService) OrderedOptions(ctx context.Context, scope, questionID string, options []domain.Option) ([]domain.Option, error) {
	if len(options) == 0 {
		return []domain.Option{}, nil
	}

	stored, err := s.orders.GetOptionOrder(ctx, scope, questionID)
	if err != nil {
		return nil, domain.StoreFailure("get option order", err)
	}
	if len(stored) == len(options) {
		return s.apply(scope, questionID, stored, options), nil
	}

	shuffled := StorageOrder(options)
	s.shuffler.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	ids := make([]string, len(shuffled))
	for i, opt := range shuffled {
		ids[i] = opt.ID
	}

	persisted, err := s.orders.SaveOptionOrder(ctx, domain.OptionOrder{
		Scope:      scope,
		QuestionID: questionID,
		OptionIDs:  ids,
	})
	if err != nil {
		return nil, domain.StoreFailure("save option order", err)
	}
	return s.apply(scope, questionID, persisted, options), nil
}

// apply maps persisted ids onto options, skipping ids that no longer exist. When nothing
// resolves the storage order is used instead.
func (s *OrderService) apply(scope, questionID string, ids []string, options []domain.Option) []domain.Option {
	byID := make(map[string]domain.Option, len(options))
	for _, opt := range options {
		byID[opt.ID] = opt
	}
	ordered := make([]domain.Option, 0, len(ids))
	for _, id := range ids {
		if opt, ok := byID[id]; ok {
			ordered = append(ordered, opt)
		}
	}
	if len(ordered) == 0 {
		s.logger.Warn("persisted option order unusable, using storage order",
			zap.String("scope", scope), zap.String("questionId", questionID))
		return StorageOrder(options)
	}
	return ordered
}

// StorageOrder returns a copy of options sorted by sort order, then id.
func StorageOrder(options []domain.Option) []domain.Option {
	out := make([]domain.Option, len(options))
	copy(out, options)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out
}
