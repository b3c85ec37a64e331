package app

import (
	"context"

	"color-quiz-service/internal/domain"
)

// ProgressCalculator derives completion state from stored counts. It never caches.
type ProgressCalculator struct {
	attempts AttemptStore
}

func NewProgressCalculator(attempts AttemptStore) *ProgressCalculator {
	return &ProgressCalculator{attempts: attempts}
}

func (p *ProgressCalculator) Progress(ctx context.Context, attemptID string) (domain.Progress, error) {
	attempt, err := p.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return domain.Progress{}, domain.StoreFailure("get attempt", err)
	}
	answered, err := p.attempts.CountAnswers(ctx, attemptID)
	if err != nil {
		return domain.Progress{}, domain.StoreFailure("count answers", err)
	}
	return domain.NewProgress(attemptID, len(attempt.Questions), answered), nil
}
