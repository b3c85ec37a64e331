package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"color-quiz-service/internal/domain"
)

func TestAttemptStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore()
	attempt := domain.Attempt{
		ID:        "a1",
		CreatedAt: time.Now(),
		Questions: []domain.AssignedQuestion{
			{Position: 2, QuestionID: "q2", QType: domain.QuestionSingleChoice},
			{Position: 1, QuestionID: "q1", QType: domain.QuestionLikert},
		},
	}
	if err := store.CreateAttempt(ctx, attempt); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.CreateAttempt(ctx, attempt); err == nil {
		t.Fatalf("expected duplicate attempt to fail")
	}

	got, err := store.GetAttempt(ctx, "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Questions[0].QuestionID != "q1" || got.Questions[1].QuestionID != "q2" {
		t.Fatalf("expected questions in position order, got %+v", got.Questions)
	}

	if _, err := store.GetAttempt(ctx, "missing"); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAttemptStoreUpsertAnswer(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore()
	_ = store.CreateAttempt(ctx, domain.Attempt{ID: "a1"})

	v := 2
	if err := store.UpsertAnswer(ctx, domain.Answer{AttemptID: "a1", QuestionID: "q1", QType: domain.QuestionLikert, LikertValue: &v}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	v = 4 // the stored copy must not change
	if err := store.UpsertAnswer(ctx, domain.Answer{AttemptID: "a1", QuestionID: "q0", QType: domain.QuestionSingleChoice, OptionID: "o1"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	answers, _ := store.ListAnswers(ctx, "a1")
	if len(answers) != 2 || answers[0].QuestionID != "q0" || *answers[1].LikertValue != 2 {
		t.Fatalf("unexpected answers %+v", answers)
	}
	if n, _ := store.CountAnswers(ctx, "a1"); n != 2 {
		t.Fatalf("expected 2 answers, got %d", n)
	}

	if err := store.UpsertAnswer(ctx, domain.Answer{AttemptID: "missing", QuestionID: "q1"}); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAttemptStoreOptionOrderFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore()

	first, _ := store.SaveOptionOrder(ctx, domain.OptionOrder{Scope: "a1", QuestionID: "q1", OptionIDs: []string{"b", "a"}})
	second, _ := store.SaveOptionOrder(ctx, domain.OptionOrder{Scope: "a1", QuestionID: "q1", OptionIDs: []string{"a", "b"}})
	if first[0] != "b" || second[0] != "b" {
		t.Fatalf("expected first order kept, got %v then %v", first, second)
	}

	replaced, _ := store.SaveOptionOrder(ctx, domain.OptionOrder{Scope: "a1", QuestionID: "q1", OptionIDs: []string{"c", "a", "b"}})
	if len(replaced) != 3 || replaced[0] != "c" {
		t.Fatalf("expected replacement on count change, got %v", replaced)
	}
}
