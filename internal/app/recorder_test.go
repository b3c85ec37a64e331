package app_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"color-quiz-service/internal/app"
	"color-quiz-service/internal/domain"
	"color-quiz-service/internal/infra/memory"
)

func newRecorder(t *testing.T) (*app.AnswerRecorder, *memory.AttemptStore) {
	t.Helper()
	store := memory.NewAttemptStore()
	err := store.CreateAttempt(context.Background(), domain.Attempt{
		ID:        "a1",
		CreatedAt: fixedNow,
		Questions: assigned("qa", "qs", "qr"),
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return app.NewAnswerRecorder(store, func() time.Time { return fixedNow }), store
}

func TestRecordLastWriteWins(t *testing.T) {
	ctx := context.Background()
	rec, store := newRecorder(t)

	for _, v := range []float64{1, 4} {
		if _, err := rec.Record(ctx, "a1", app.Submission{QuestionID: "qa", QType: domain.QuestionLikert, LikertValue: num(v)}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	answers, _ := store.ListAnswers(ctx, "a1")
	if len(answers) != 1 || *answers[0].LikertValue != 4 {
		t.Fatalf("expected single answer with value 4, got %+v", answers)
	}
	if !answers[0].AnsweredAt.Equal(fixedNow) {
		t.Fatalf("expected clock timestamp, got %v", answers[0].AnsweredAt)
	}
}

func TestRecordValidatesLikert(t *testing.T) {
	rec, store := newRecorder(t)
	for _, v := range []*float64{nil, num(-1), num(5), num(2.5), num(math.NaN())} {
		_, err := rec.Record(context.Background(), "a1", app.Submission{QuestionID: "qa", QType: domain.QuestionLikert, LikertValue: v})
		var verr *domain.ValidationError
		if !errors.As(err, &verr) || verr.Field != "likertValue" {
			t.Fatalf("expected likertValue validation error, got %v", err)
		}
	}
	if n, _ := store.CountAnswers(context.Background(), "a1"); n != 0 {
		t.Fatalf("expected nothing stored, got %d", n)
	}
}

func TestRecordRejectsDuplicateRanksBeforeStorage(t *testing.T) {
	rec, store := newRecorder(t)
	_, err := rec.Record(context.Background(), "a1", app.Submission{
		QuestionID: "qr",
		QType:      domain.QuestionRanked,
		Ranking:    []domain.RankedItem{rank("r1", 1), rank("r2", 1), rank("r3", 2), rank("r4", 3)},
	})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if n, _ := store.CountAnswers(context.Background(), "a1"); n != 0 {
		t.Fatalf("expected nothing stored, got %d", n)
	}
}

func TestRecordSingleChoiceRequiresOption(t *testing.T) {
	rec, _ := newRecorder(t)
	_, err := rec.Record(context.Background(), "a1", app.Submission{QuestionID: "qs", QType: domain.QuestionSingleChoice})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Field != "optionId" {
		t.Fatalf("expected optionId validation error, got %v", err)
	}
}

func TestRecordRejectsUnassignedQuestionAndWrongType(t *testing.T) {
	rec, _ := newRecorder(t)
	ctx := context.Background()

	_, err := rec.Record(ctx, "a1", app.Submission{QuestionID: "qb", QType: domain.QuestionLikert, LikertValue: num(1)})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Field != "questionId" {
		t.Fatalf("expected unassigned question rejected, got %v", err)
	}

	_, err = rec.Record(ctx, "a1", app.Submission{QuestionID: "qs", QType: domain.QuestionLikert, LikertValue: num(1)})
	if !errors.As(err, &verr) || verr.Field != "qtype" {
		t.Fatalf("expected qtype mismatch rejected, got %v", err)
	}
}

func TestRecordUnknownAttempt(t *testing.T) {
	rec, _ := newRecorder(t)
	_, err := rec.Record(context.Background(), "missing", app.Submission{QuestionID: "qa", QType: domain.QuestionLikert, LikertValue: num(1)})
	if !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestProgressCounts(t *testing.T) {
	ctx := context.Background()
	rec, store := newRecorder(t)
	calc := app.NewProgressCalculator(store)

	p, err := calc.Progress(ctx, "a1")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if p.Assigned != 3 || p.Answered != 0 || p.Remaining != 3 || p.IsComplete {
		t.Fatalf("unexpected progress %+v", p)
	}

	_, _ = rec.Record(ctx, "a1", app.Submission{QuestionID: "qa", QType: domain.QuestionLikert, LikertValue: num(2)})
	_, _ = rec.Record(ctx, "a1", app.Submission{QuestionID: "qs", QType: domain.QuestionSingleChoice, OptionID: "s1"})
	_, _ = rec.Record(ctx, "a1", app.Submission{QuestionID: "qr", QType: domain.QuestionRanked,
		Ranking: []domain.RankedItem{rank("r1", 1), rank("r2", 2), rank("r3", 3), rank("r4", 4)}})

	p, _ = calc.Progress(ctx, "a1")
	if p.Answered != 3 || p.Remaining != 0 || !p.IsComplete {
		t.Fatalf("expected complete, got %+v", p)
	}

	if _, err := calc.Progress(ctx, "missing"); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRecordDefaultsToWallClock(t *testing.T) {
	ctx := context.Background()
	store := memory.NewAttemptStore()
	if err := store.CreateAttempt(ctx, domain.Attempt{ID: "a1", CreatedAt: fixedNow, Questions: assigned("qa")}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	rec := app.NewAnswerRecorder(store, nil)

	before := time.Now().UTC()
	answer, err := rec.Record(ctx, "a1", app.Submission{QuestionID: "qa", QType: domain.QuestionLikert, LikertValue: num(2)})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if answer.AnsweredAt.Before(before) {
		t.Fatalf("expected wall clock timestamp, got %v (before %v)", answer.AnsweredAt, before)
	}
}
