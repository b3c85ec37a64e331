package app_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"color-quiz-service/internal/app"
	"color-quiz-service/internal/domain"
	"color-quiz-service/internal/infra/memory"
)

var fixedNow = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

// reverseShuffler reverses the slice, which makes shuffled orders predictable.
type reverseShuffler struct{ calls int }

func (s *reverseShuffler) Shuffle(n int, swap func(i, j int)) {
	s.calls++
	for i := 0; i < n/2; i++ {
		swap(i, n-1-i)
	}
}

// fixedAllocator hands out the same questions to every attempt.
type fixedAllocator struct {
	questions []domain.AssignedQuestion
	err       error
}

func (a fixedAllocator) Allocate(context.Context, string, int) ([]domain.AssignedQuestion, error) {
	return a.questions, a.err
}

func num(v float64) *float64 { return &v }

// sampleQuestions is the {A,B} fixture: two likert questions, one single choice and one ranked.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: "qa", Prompt: "I act fast", QType: domain.QuestionLikert, Category: "a",
			Localized: map[string]string{"fr": "J'agis vite"}},
		{ID: "qb", Prompt: "I plan ahead", QType: domain.QuestionLikert, Category: "b"},
		{ID: "qs", Prompt: "Pick one", QType: domain.QuestionSingleChoice, Options: []domain.Option{
			{ID: "s1", Label: "Go", Weights: domain.Weights{"a": 4, "b": 0}},
			{ID: "s2", Label: "Wait", Weights: domain.Weights{"a": 0, "b": 4}},
		}},
		{ID: "qr", Prompt: "Rank these", QType: domain.QuestionRanked, Options: []domain.Option{
			{ID: "r1", Label: "One", Weights: domain.Weights{"a": 4, "b": 0}},
			{ID: "r2", Label: "Two", Weights: domain.Weights{"a": 0, "b": 4}},
			{ID: "r3", Label: "Three", Weights: domain.Weights{"a": 2, "b": 2}},
			{ID: "r4", Label: "Four", Weights: domain.Weights{"a": 0, "b": 0}},
		}},
	}
}

func assigned(ids ...string) []domain.AssignedQuestion {
	types := map[string]domain.QuestionType{}
	for _, q := range sampleQuestions() {
		types[q.ID] = q.QType
	}
	out := make([]domain.AssignedQuestion, len(ids))
	for i, id := range ids {
		out[i] = domain.AssignedQuestion{Position: i + 1, QuestionID: id, QType: types[id]}
	}
	return out
}

type fixture struct {
	service  *app.AttemptService
	store    *memory.AttemptStore
	feeds    *memory.FeedStore
	shuffler *reverseShuffler
	nextID   int
}

func newFixture(t *testing.T, questions []domain.AssignedQuestion) *fixture {
	t.Helper()
	bank, err := memory.NewStaticBank(sampleQuestions())
	if err != nil {
		t.Fatalf("bank: %v", err)
	}
	f := &fixture{
		store:    memory.NewAttemptStore(),
		feeds:    memory.NewFeedStore(),
		shuffler: &reverseShuffler{},
	}
	f.service = app.NewAttemptService(app.ServiceConfig{
		QuestionCount: len(questions),
		Categories:    domain.MustCategorySet("a", "b"),
		Shuffler:      f.shuffler,
		NewID: func() string {
			f.nextID++
			return fmt.Sprintf("attempt-%d", f.nextID)
		},
		Now:   func() time.Time { return fixedNow },
		Feeds: f.feeds,
	}, f.store, f.store, bank, fixedAllocator{questions: questions}, nil)
	return f
}
