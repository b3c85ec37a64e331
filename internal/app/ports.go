package app

import (
	"context"

	"color-quiz-service/internal/domain"
)

// AttemptStore abstracts how attempts and their answers are persisted (memory, Postgres, SQLite).
type AttemptStore interface {
	// CreateAttempt persists the attempt and its assigned questions atomically.
	CreateAttempt(ctx context.Context, attempt domain.Attempt) error
	// GetAttempt returns the attempt with its questions ordered by position.
	GetAttempt(ctx context.Context, attemptID string) (domain.Attempt, error)
	CountAnswers(ctx context.Context, attemptID string) (int, error)
	// UpsertAnswer inserts or overwrites the answer keyed on (attempt, question).
	UpsertAnswer(ctx context.Context, answer domain.Answer) error
	ListAnswers(ctx context.Context, attemptID string) ([]domain.Answer, error)
	Ping(ctx context.Context) error
}

// OptionOrderStore persists shuffle-once option permutations.
type OptionOrderStore interface {
	// GetOptionOrder returns the persisted option ids, or nil when none exists.
	GetOptionOrder(ctx context.Context, scope, questionID string) ([]string, error)
	// SaveOptionOrder stores order unless one with the same length already exists and
	// returns whichever permutation is persisted after the call.
	SaveOptionOrder(ctx context.Context, order domain.OptionOrder) ([]string, error)
}

// QuestionBank loads read-only question content.
type QuestionBank interface {
	// Questions returns the requested questions (with options) keyed by id. Unknown ids are omitted.
	Questions(ctx context.Context, ids []string) (map[string]domain.Question, error)
	// Catalog lists the questions available for allocation.
	Catalog(ctx context.Context) ([]domain.QuestionRef, error)
}

// Allocator selects the questions of a new attempt.
type Allocator interface {
	Allocate(ctx context.Context, attemptID string, count int) ([]domain.AssignedQuestion, error)
}

// Shuffler permutes n elements in place through swap.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// Telemetry receives domain events for metrics.
type Telemetry interface {
	AttemptCreated()
	AnswerRecorded(qtype domain.QuestionType)
	AttemptFinished(outcome string)
}

// Finish outcomes reported to Telemetry.
const (
	OutcomeScored     = "scored"
	OutcomeIncomplete = "incomplete"
	OutcomeFailed     = "failed"
)

type noopTelemetry struct{}

func (noopTelemetry) AttemptCreated()                   {}
func (noopTelemetry) AnswerRecorded(domain.QuestionType) {}
func (noopTelemetry) AttemptFinished(string)            {}
