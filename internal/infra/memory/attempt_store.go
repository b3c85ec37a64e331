package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"color-quiz-service/internal/domain"
)

type orderKey struct {
	scope      string
	questionID string
}

// AttemptStore is an in-memory implementation of app.AttemptStore and app.OptionOrderStore.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts map[string]domain.Attempt
	answers  map[string]map[string]domain.Answer
	orders   map[orderKey][]string
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		attempts: make(map[string]domain.Attempt),
		answers:  make(map[string]map[string]domain.Answer),
		orders:   make(map[orderKey][]string),
	}
}

func (s *AttemptStore) CreateAttempt(_ context.Context, attempt domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attempts[attempt.ID]; ok {
		return fmt.Errorf("attempt %s already exists", attempt.ID)
	}
	attempt.Questions = append([]domain.AssignedQuestion(nil), attempt.Questions...)
	sort.SliceStable(attempt.Questions, func(i, j int) bool {
		return attempt.Questions[i].Position < attempt.Questions[j].Position
	})
	s.attempts[attempt.ID] = attempt
	return nil
}

func (s *AttemptStore) GetAttempt(_ context.Context, attemptID string) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	attempt.Questions = append([]domain.AssignedQuestion(nil), attempt.Questions...)
	return attempt, nil
}

func (s *AttemptStore) CountAnswers(_ context.Context, attemptID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.answers[attemptID]), nil
}

func (s *AttemptStore) UpsertAnswer(_ context.Context, answer domain.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attempts[answer.AttemptID]; !ok {
		return domain.ErrAttemptNotFound
	}
	byQuestion, ok := s.answers[answer.AttemptID]
	if !ok {
		byQuestion = make(map[string]domain.Answer)
		s.answers[answer.AttemptID] = byQuestion
	}
	byQuestion[answer.QuestionID] = cloneAnswer(answer)
	return nil
}

func (s *AttemptStore) ListAnswers(_ context.Context, attemptID string) ([]domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byQuestion := s.answers[attemptID]
	out := make([]domain.Answer, 0, len(byQuestion))
	for _, a := range byQuestion {
		out = append(out, cloneAnswer(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

func (s *AttemptStore) GetOptionOrder(_ context.Context, scope, questionID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids, ok := s.orders[orderKey{scope, questionID}]
	if !ok {
		return nil, nil
	}
	return append([]string(nil), ids...), nil
}

// SaveOptionOrder keeps an existing order of the same length; otherwise order replaces it.
func (s *AttemptStore) SaveOptionOrder(_ context.Context, order domain.OptionOrder) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := orderKey{order.Scope, order.QuestionID}
	if existing, ok := s.orders[key]; ok && len(existing) == len(order.OptionIDs) {
		return append([]string(nil), existing...), nil
	}
	s.orders[key] = append([]string(nil), order.OptionIDs...)
	return append([]string(nil), order.OptionIDs...), nil
}

func (s *AttemptStore) Ping(context.Context) error { return nil }

func cloneAnswer(a domain.Answer) domain.Answer {
	if a.LikertValue != nil {
		v := *a.LikertValue
		a.LikertValue = &v
	}
	a.Ranking = append([]domain.RankedItem(nil), a.Ranking...)
	return a
}
