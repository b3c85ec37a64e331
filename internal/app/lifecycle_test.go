package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"color-quiz-service/internal/app"
	"color-quiz-service/internal/domain"
	"color-quiz-service/internal/infra/memory"
)

func answerAll(t *testing.T, svc *app.AttemptService, attemptID string) {
	t.Helper()
	ctx := context.Background()
	if _, err := svc.RecordAnswer(ctx, attemptID, app.Submission{QuestionID: "qa", QType: domain.QuestionLikert, LikertValue: num(3)}); err != nil {
		t.Fatalf("answer qa: %v", err)
	}
	if _, err := svc.RecordAnswer(ctx, attemptID, app.Submission{QuestionID: "qb", QType: domain.QuestionLikert, LikertValue: num(1)}); err != nil {
		t.Fatalf("answer qb: %v", err)
	}
	if _, err := svc.RecordAnswer(ctx, attemptID, app.Submission{QuestionID: "qs", QType: domain.QuestionSingleChoice, OptionID: "s1"}); err != nil {
		t.Fatalf("answer qs: %v", err)
	}
}

func TestFinishScoresLikertAndSingleChoice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, assigned("qa", "qb", "qs"))

	attempt, err := f.service.CreateAttempt(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	answerAll(t, f.service, attempt.ID)

	res, err := f.service.Finish(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if res.Total("a") != 7 || res.Total("b") != 1 {
		t.Fatalf("expected {a:7 b:1}, got %+v", res.Results)
	}
	if res.Winner != "a" {
		t.Fatalf("expected winner a, got %s", res.Winner)
	}
}

func TestFinishIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, assigned("qa", "qb", "qs"))
	attempt, _ := f.service.CreateAttempt(ctx)
	answerAll(t, f.service, attempt.ID)

	first, err := f.service.Finish(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	second, err := f.service.Finish(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("finish again: %v", err)
	}
	results, err := f.service.Results(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	c, _ := json.Marshal(results)
	if !bytes.Equal(a, b) || !bytes.Equal(a, c) {
		t.Fatalf("expected identical results:\n%s\n%s\n%s", a, b, c)
	}
}

func TestFinishRejectsIncompleteAttempt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, assigned("qa", "qb", "qs"))
	attempt, _ := f.service.CreateAttempt(ctx)

	if _, err := f.service.RecordAnswer(ctx, attempt.ID, app.Submission{QuestionID: "qa", QType: domain.QuestionLikert, LikertValue: num(2)}); err != nil {
		t.Fatalf("answer: %v", err)
	}
	_, err := f.service.Finish(ctx, attempt.ID)
	var incomplete *domain.IncompleteError
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected incomplete error, got %v", err)
	}
	if incomplete.Assigned != 3 || incomplete.Answered != 1 || incomplete.Remaining != 2 {
		t.Fatalf("unexpected counts %+v", incomplete)
	}
	if _, err := f.service.Results(ctx, attempt.ID); !errors.As(err, &incomplete) {
		t.Fatalf("expected results gated too, got %v", err)
	}
}

func TestFinishUnknownAttempt(t *testing.T) {
	f := newFixture(t, assigned("qa"))
	if _, err := f.service.Finish(context.Background(), "missing"); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFinishWithoutQuestions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, assigned("qa"))
	if err := f.store.CreateAttempt(ctx, domain.Attempt{ID: "empty", CreatedAt: fixedNow}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := f.service.Finish(ctx, "empty"); !errors.Is(err, domain.ErrNoQuestions) {
		t.Fatalf("expected no questions, got %v", err)
	}
}

func TestCreateAttemptRejectsWrongCount(t *testing.T) {
	ctx := context.Background()
	bank, _ := memory.NewStaticBank(sampleQuestions())
	store := memory.NewAttemptStore()
	svc := app.NewAttemptService(app.ServiceConfig{
		QuestionCount: 3,
		NewID:         func() string { return "attempt-1" },
	}, store, store, bank, fixedAllocator{questions: assigned("qa", "qb")}, nil)

	if _, err := svc.CreateAttempt(ctx); !errors.Is(err, domain.ErrAssignmentMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if _, err := store.GetAttempt(ctx, "attempt-1"); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected nothing persisted, got %v", err)
	}
}

func TestCreateAttemptRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	bank, _ := memory.NewStaticBank(sampleQuestions())
	store := memory.NewAttemptStore()
	dup := append(assigned("qa", "qb"), domain.AssignedQuestion{Position: 3, QuestionID: "qa", QType: domain.QuestionLikert})
	svc := app.NewAttemptService(app.ServiceConfig{QuestionCount: 3}, store, store, bank, fixedAllocator{questions: dup}, nil)

	if _, err := svc.CreateAttempt(ctx); !errors.Is(err, domain.ErrAssignmentMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
}

func TestCreateAttemptRenumbersPositions(t *testing.T) {
	ctx := context.Background()
	questions := []domain.AssignedQuestion{
		{Position: 30, QuestionID: "qs", QType: domain.QuestionSingleChoice},
		{Position: 10, QuestionID: "qa", QType: domain.QuestionLikert},
	}
	f := newFixture(t, questions)

	attempt, err := f.service.CreateAttempt(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if attempt.Questions[0].QuestionID != "qa" || attempt.Questions[0].Position != 1 ||
		attempt.Questions[1].QuestionID != "qs" || attempt.Questions[1].Position != 2 {
		t.Fatalf("unexpected positions %+v", attempt.Questions)
	}
}

func TestViewOrdersOptionsOncePerAttempt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, assigned("qa", "qs", "qr"))
	attempt, _ := f.service.CreateAttempt(ctx)

	first, err := f.service.View(ctx, attempt.ID, "")
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	second, err := f.service.View(ctx, attempt.ID, "")
	if err != nil {
		t.Fatalf("view again: %v", err)
	}
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if !bytes.Equal(a, b) {
		t.Fatalf("expected stable view:\n%s\n%s", a, b)
	}
	if f.shuffler.calls != 2 {
		t.Fatalf("expected one shuffle per option question, got %d", f.shuffler.calls)
	}

	ranked := first.Questions[2]
	if ranked.ID != "qr" || len(ranked.Options) != 4 || ranked.Options[0].ID != "r4" {
		t.Fatalf("expected reversed ranked options, got %+v", ranked)
	}
	if likert := first.Questions[0]; likert.Category != "a" || len(likert.Options) != 0 {
		t.Fatalf("unexpected likert view %+v", likert)
	}
}

func TestViewLocalizesWithFallback(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, assigned("qa", "qb"))
	attempt, _ := f.service.CreateAttempt(ctx)

	view, err := f.service.View(ctx, attempt.ID, "FR")
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if view.Questions[0].Prompt != "J'agis vite" {
		t.Fatalf("expected localized prompt, got %q", view.Questions[0].Prompt)
	}
	if view.Questions[1].Prompt != "I plan ahead" {
		t.Fatalf("expected fallback prompt, got %q", view.Questions[1].Prompt)
	}
}

func TestNextWalksUnansweredQuestions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, assigned("qa", "qb"))
	attempt, _ := f.service.CreateAttempt(ctx)

	next, err := f.service.Next(ctx, attempt.ID, "")
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if next.Done || next.Index != 0 || next.Question == nil || next.Question.ID != "qa" {
		t.Fatalf("unexpected next %+v", next)
	}

	_, _ = f.service.RecordAnswer(ctx, attempt.ID, app.Submission{QuestionID: "qa", QType: domain.QuestionLikert, LikertValue: num(0)})
	next, _ = f.service.Next(ctx, attempt.ID, "")
	if next.Index != 1 || next.Question.ID != "qb" {
		t.Fatalf("expected qb next, got %+v", next)
	}

	_, _ = f.service.RecordAnswer(ctx, attempt.ID, app.Submission{QuestionID: "qb", QType: domain.QuestionLikert, LikertValue: num(4)})
	next, _ = f.service.Next(ctx, attempt.ID, "")
	if !next.Done || next.Question != nil || next.Index != 2 || next.Total != 2 {
		t.Fatalf("expected done, got %+v", next)
	}
}

func TestWatchReceivesProgress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, assigned("qa", "qb"))
	attempt, _ := f.service.CreateAttempt(ctx)

	updates, cancel, err := f.service.Watch(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	if initial := <-updates; initial.Answered != 0 || initial.Assigned != 2 {
		t.Fatalf("unexpected initial progress %+v", initial)
	}
	if _, err := f.service.RecordAnswer(ctx, attempt.ID, app.Submission{QuestionID: "qa", QType: domain.QuestionLikert, LikertValue: num(1)}); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if update := <-updates; update.Answered != 1 || update.Remaining != 1 {
		t.Fatalf("unexpected update %+v", update)
	}

	cancel()
	if _, ok := f.feeds.Get(attempt.ID); ok {
		t.Fatalf("expected feed dropped after last subscriber left")
	}
}

func TestWatchUnknownAttempt(t *testing.T) {
	f := newFixture(t, assigned("qa"))
	if _, _, err := f.service.Watch(context.Background(), "missing"); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

type countingTelemetry struct {
	created  int
	recorded map[domain.QuestionType]int
	finished map[string]int
}

func (c *countingTelemetry) AttemptCreated() { c.created++ }
func (c *countingTelemetry) AnswerRecorded(q domain.QuestionType) {
	c.recorded[q]++
}
func (c *countingTelemetry) AttemptFinished(outcome string) { c.finished[outcome]++ }

func TestTelemetryEvents(t *testing.T) {
	ctx := context.Background()
	bank, _ := memory.NewStaticBank(sampleQuestions())
	store := memory.NewAttemptStore()
	tel := &countingTelemetry{recorded: map[domain.QuestionType]int{}, finished: map[string]int{}}
	svc := app.NewAttemptService(app.ServiceConfig{
		QuestionCount: 3,
		Categories:    domain.MustCategorySet("a", "b"),
		Telemetry:     tel,
	}, store, store, bank, fixedAllocator{questions: assigned("qa", "qb", "qs")}, nil)

	attempt, err := svc.CreateAttempt(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, _ = svc.Finish(ctx, attempt.ID)
	answerAll(t, svc, attempt.ID)
	if _, err := svc.Finish(ctx, attempt.ID); err != nil {
		t.Fatalf("finish: %v", err)
	}

	if tel.created != 1 || tel.recorded[domain.QuestionLikert] != 2 || tel.recorded[domain.QuestionSingleChoice] != 1 {
		t.Fatalf("unexpected telemetry %+v", tel)
	}
	if tel.finished[app.OutcomeIncomplete] != 1 || tel.finished[app.OutcomeScored] != 1 {
		t.Fatalf("unexpected finish outcomes %+v", tel.finished)
	}
}

func TestRankingPreview(t *testing.T) {
	f := newFixture(t, assigned("qr"))
	ctx := context.Background()

	totals, err := f.service.RankingPreview(ctx, "qr", []domain.RankedItem{rank("r1", 1), rank("r2", 2), rank("r3", 3), rank("r4", 4)})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if totals["a"] != 14 || totals["b"] != 10 {
		t.Fatalf("expected a=14 b=10, got %v", totals)
	}

	if _, err := f.service.RankingPreview(ctx, "missing", nil); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}
	var verr *domain.ValidationError
	if _, err := f.service.RankingPreview(ctx, "qr", []domain.RankedItem{rank("r1", 1)}); !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
