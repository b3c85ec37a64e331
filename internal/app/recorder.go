package app

import (
	"context"
	"math"
	"strings"
	"time"

	"color-quiz-service/internal/domain"
)

// Submission is a single answer as submitted by a client. Only the field matching QType is read.
type Submission struct {
	QuestionID  string
	QType       domain.QuestionType
	LikertValue *float64
	OptionID    string
	Ranking     []domain.RankedItem
}

// AnswerRecorder validates submissions and stores them with last-write-wins semantics.
type AnswerRecorder struct {
	attempts AttemptStore
	now      func() time.Time
}

// NewAnswerRecorder stamps answers with now, or time.Now when now is nil.
func NewAnswerRecorder(attempts AttemptStore, now func() time.Time) *AnswerRecorder {
	if now == nil {
		now = time.Now
	}
	return &AnswerRecorder{attempts: attempts, now: now}
}

// Record validates sub and upserts it as the answer for (attemptID, sub.QuestionID).
func (r *AnswerRecorder) Record(ctx context.Context, attemptID string, sub Submission) (domain.Answer, error) {
	answer, err := buildAnswer(attemptID, sub)
	if err != nil {
		return domain.Answer{}, err
	}

	attempt, err := r.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return domain.Answer{}, domain.StoreFailure("get attempt", err)
	}
	assigned, ok := attempt.Assigned(answer.QuestionID)
	if !ok {
		return domain.Answer{}, domain.Invalid("questionId", "question %s is not assigned to this attempt", answer.QuestionID)
	}
	if assigned.QType != answer.QType {
		return domain.Answer{}, domain.Invalid("qtype", "question %s expects %s, got %s", answer.QuestionID, assigned.QType, answer.QType)
	}

	answer.AnsweredAt = r.now().UTC()
	if err := r.attempts.UpsertAnswer(ctx, answer); err != nil {
		return domain.Answer{}, domain.StoreFailure("upsert answer", err)
	}
	return answer, nil
}

// buildAnswer performs all input validation that needs no storage access.
func buildAnswer(attemptID string, sub Submission) (domain.Answer, error) {
	if strings.TrimSpace(attemptID) == "" {
		return domain.Answer{}, domain.Invalid("attemptId", "is required")
	}
	if strings.TrimSpace(sub.QuestionID) == "" {
		return domain.Answer{}, domain.Invalid("questionId", "is required")
	}

	answer := domain.Answer{
		AttemptID:  attemptID,
		QuestionID: sub.QuestionID,
		QType:      sub.QType,
	}
	switch sub.QType {
	case domain.QuestionLikert:
		v, err := likertValue(sub.LikertValue)
		if err != nil {
			return domain.Answer{}, err
		}
		answer.LikertValue = &v
	case domain.QuestionSingleChoice:
		if strings.TrimSpace(sub.OptionID) == "" {
			return domain.Answer{}, domain.Invalid("optionId", "is required for single-choice questions")
		}
		answer.OptionID = sub.OptionID
	case domain.QuestionRanked:
		if err := ValidateRanking(sub.Ranking); err != nil {
			return domain.Answer{}, err
		}
		answer.Ranking = append([]domain.RankedItem(nil), sub.Ranking...)
	default:
		return domain.Answer{}, domain.Invalid("qtype", "unknown question type %q", sub.QType)
	}
	return answer, nil
}

func likertValue(raw *float64) (int, error) {
	if raw == nil {
		return 0, domain.Invalid("likertValue", "is required for likert questions")
	}
	v := *raw
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, domain.Invalid("likertValue", "must be an integer")
	}
	if v < domain.LikertMin || v > domain.LikertMax {
		return 0, domain.Invalid("likertValue", "must be %d..%d", domain.LikertMin, domain.LikertMax)
	}
	return int(v), nil
}
