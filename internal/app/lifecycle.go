package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"color-quiz-service/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultQuestionCount is the fixed size of an attempt when none is configured.
const DefaultQuestionCount = 50

// ServiceConfig carries the tunables of AttemptService.
type ServiceConfig struct {
	QuestionCount int
	Categories    domain.CategorySet
	Shuffler      Shuffler
	NewID         func() string
	Now           func() time.Time
	// Feeds receives progress pushes after every recorded answer. Optional.
	Feeds         FeedRepository
	Telemetry     Telemetry
}

// AttemptService orchestrates attempt creation, the assembled view, answer recording, progress
// and scoring.
type AttemptService struct {
	attempts  AttemptStore
	bank      QuestionBank
	allocator Allocator
	orders    *OrderService
	recorder  *AnswerRecorder
	progress  *ProgressCalculator
	scoring   *ScoringEngine
	count     int
	newID     func() string
	now       func() time.Time
	feeds     FeedRepository
	telemetry Telemetry
	logger    *zap.Logger
}

func NewAttemptService(cfg ServiceConfig, attempts AttemptStore, orders OptionOrderStore, bank QuestionBank, allocator Allocator, logger *zap.Logger) *AttemptService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.QuestionCount <= 0 {
		cfg.QuestionCount = DefaultQuestionCount
	}
	if cfg.Categories.Len() == 0 {
		cfg.Categories = domain.MustCategorySet(domain.DefaultCategories...)
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Telemetry == nil {
		cfg.Telemetry = noopTelemetry{}
	}
	return &AttemptService{
		attempts:  attempts,
		bank:      bank,
		allocator: allocator,
		orders:    NewOrderService(orders, cfg.Shuffler, logger),
		recorder:  NewAnswerRecorder(attempts, cfg.Now),
		progress:  NewProgressCalculator(attempts),
		scoring:   NewScoringEngine(cfg.Categories),
		count:     cfg.QuestionCount,
		newID:     cfg.NewID,
		now:       cfg.Now,
		feeds:     cfg.Feeds,
		telemetry: cfg.Telemetry,
		logger:    logger,
	}
}

// CreateAttempt assigns questions and persists the attempt in one step. Nothing is stored
// when assignment fails or yields the wrong number of questions.
func (s *AttemptService) CreateAttempt(ctx context.Context) (domain.Attempt, error) {
	id := s.newID()
	assigned, err := s.allocator.Allocate(ctx, id, s.count)
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("assign questions: %w", err)
	}
	questions, err := normalizeAssignment(assigned, s.count)
	if err != nil {
		return domain.Attempt{}, err
	}

	attempt := domain.Attempt{
		ID:        id,
		CreatedAt: s.now().UTC(),
		Questions: questions,
	}
	if err := s.attempts.CreateAttempt(ctx, attempt); err != nil {
		return domain.Attempt{}, domain.StoreFailure("create attempt", err)
	}
	s.telemetry.AttemptCreated()
	s.logger.Info("attempt created", zap.String("attemptId", id), zap.Int("questions", len(questions)))
	return attempt, nil
}

// normalizeAssignment checks the allocator output and renumbers positions 1..n in position order.
func normalizeAssignment(assigned []domain.AssignedQuestion, want int) ([]domain.AssignedQuestion, error) {
	if len(assigned) != want {
		return nil, fmt.Errorf("%w: expected %d questions, got %d", domain.ErrAssignmentMismatch, want, len(assigned))
	}
	out := make([]domain.AssignedQuestion, len(assigned))
	copy(out, assigned)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })

	seen := make(map[string]struct{}, len(out))
	for i := range out {
		q := &out[i]
		if q.QuestionID == "" || !q.QType.Valid() {
			return nil, fmt.Errorf("%w: invalid question at position %d", domain.ErrAssignmentMismatch, q.Position)
		}
		if _, dup := seen[q.QuestionID]; dup {
			return nil, fmt.Errorf("%w: question %s assigned twice", domain.ErrAssignmentMismatch, q.QuestionID)
		}
		seen[q.QuestionID] = struct{}{}
		q.Position = i + 1
	}
	return out, nil
}

// View assembles every assigned question with its attempt-specific option order.
func (s *AttemptService) View(ctx context.Context, attemptID, locale string) (domain.AttemptView, error) {
	attempt, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return domain.AttemptView{}, domain.StoreFailure("get attempt", err)
	}
	questions, err := s.bank.Questions(ctx, questionIDs(attempt.Questions))
	if err != nil {
		return domain.AttemptView{}, fmt.Errorf("load questions: %w", err)
	}

	view := domain.AttemptView{AttemptID: attemptID, Questions: make([]domain.QuestionView, 0, len(attempt.Questions))}
	for _, aq := range attempt.Questions {
		qv, err := s.questionView(ctx, attemptID, aq, questions, locale)
		if err != nil {
			return domain.AttemptView{}, err
		}
		view.Questions = append(view.Questions, qv)
	}
	return view, nil
}

// Next returns the first unanswered question in position order.
func (s *AttemptService) Next(ctx context.Context, attemptID, locale string) (domain.NextQuestion, error) {
	attempt, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return domain.NextQuestion{}, domain.StoreFailure("get attempt", err)
	}
	if len(attempt.Questions) == 0 {
		return domain.NextQuestion{}, domain.ErrNoQuestions
	}
	answers, err := s.attempts.ListAnswers(ctx, attemptID)
	if err != nil {
		return domain.NextQuestion{}, domain.StoreFailure("list answers", err)
	}
	answered := make(map[string]struct{}, len(answers))
	for _, a := range answers {
		answered[a.QuestionID] = struct{}{}
	}

	next := domain.NextQuestion{AttemptID: attemptID, Total: len(attempt.Questions)}
	for i, aq := range attempt.Questions {
		if _, ok := answered[aq.QuestionID]; ok {
			continue
		}
		questions, err := s.bank.Questions(ctx, []string{aq.QuestionID})
		if err != nil {
			return domain.NextQuestion{}, fmt.Errorf("load questions: %w", err)
		}
		qv, err := s.questionView(ctx, attemptID, aq, questions, locale)
		if err != nil {
			return domain.NextQuestion{}, err
		}
		next.Index = i
		next.Question = &qv
		return next, nil
	}
	next.Done = true
	next.Index = len(attempt.Questions)
	return next, nil
}

func (s *AttemptService) questionView(ctx context.Context, attemptID string, aq domain.AssignedQuestion, questions map[string]domain.Question, locale string) (domain.QuestionView, error) {
	qv := domain.QuestionView{
		Position: aq.Position,
		QType:    aq.QType,
		ID:       aq.QuestionID,
		Options:  []domain.OptionView{},
	}
	q, ok := questions[aq.QuestionID]
	if !ok {
		s.logger.Warn("assigned question missing from bank",
			zap.String("attemptId", attemptID), zap.String("questionId", aq.QuestionID))
		return qv, nil
	}
	qv.Prompt = localize(q.Prompt, q.Localized, locale)
	if aq.QType == domain.QuestionLikert {
		qv.Category = q.Category
	}
	if !aq.QType.HasOptions() {
		return qv, nil
	}

	ordered, err := s.orders.OrderedOptions(ctx, attemptID, aq.QuestionID, q.Options)
	if err != nil {
		return domain.QuestionView{}, err
	}
	for _, opt := range ordered {
		qv.Options = append(qv.Options, domain.OptionView{ID: opt.ID, Label: localize(opt.Label, opt.Localized, locale)})
	}
	return qv, nil
}

// RecordAnswer stores a likert or single-choice answer.
func (s *AttemptService) RecordAnswer(ctx context.Context, attemptID string, sub Submission) (domain.Answer, error) {
	answer, err := s.recorder.Record(ctx, attemptID, sub)
	if err != nil {
		return domain.Answer{}, err
	}
	s.telemetry.AnswerRecorded(answer.QType)
	s.publishProgress(ctx, attemptID)
	return answer, nil
}

// RecordRanking stores the four ranks of a ranked question.
func (s *AttemptService) RecordRanking(ctx context.Context, attemptID, questionID string, ranked []domain.RankedItem) (domain.Answer, error) {
	return s.RecordAnswer(ctx, attemptID, Submission{
		QuestionID: questionID,
		QType:      domain.QuestionRanked,
		Ranking:    ranked,
	})
}

// RankingPreview returns the rank-point totals ranked would add for questionID. Nothing is stored.
func (s *AttemptService) RankingPreview(ctx context.Context, questionID string, ranked []domain.RankedItem) (domain.Weights, error) {
	questions, err := s.bank.Questions(ctx, []string{questionID})
	if err != nil {
		return nil, domain.StoreFailure("load question", err)
	}
	q, ok := questions[questionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrQuestionNotFound, questionID)
	}
	return RankPointWeighting{}.Contribution(q, domain.Answer{
		QuestionID: questionID,
		QType:      domain.QuestionRanked,
		Ranking:    ranked,
	})
}

// Watch subscribes to progress updates of an attempt. The first value is the current progress.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *AttemptService) Watch(ctx context.Context, attemptID string) (<-chan domain.Progress, func(), error) {
	if s.feeds == nil {
		return nil, nil, fmt.Errorf("progress feeds are not configured")
	}
	current, err := s.progress.Progress(ctx, attemptID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.feeds.GetOrCreate(attemptID).Subscribe(current)
	return ch, func() {
		cancel()
		s.feeds.DeleteIfIdle(attemptID)
	}, nil
}

func (s *AttemptService) publishProgress(ctx context.Context, attemptID string) {
	if s.feeds == nil {
		return
	}
	feed, ok := s.feeds.Get(attemptID)
	if !ok {
		return
	}
	p, err := s.progress.Progress(ctx, attemptID)
	if err != nil {
		s.logger.Warn("progress publish failed", zap.String("attemptId", attemptID), zap.Error(err))
		return
	}
	feed.Publish(p)
}

func (s *AttemptService) Progress(ctx context.Context, attemptID string) (domain.Progress, error) {
	return s.progress.Progress(ctx, attemptID)
}

// Finish scores a complete attempt. It has no side effects, so repeated calls return the same
// result for unchanged answers.
func (s *AttemptService) Finish(ctx context.Context, attemptID string) (domain.ScoreResult, error) {
	res, err := s.score(ctx, attemptID)
	if err != nil {
		var incomplete *domain.IncompleteError
		if errors.As(err, &incomplete) || errors.Is(err, domain.ErrNoQuestions) {
			s.telemetry.AttemptFinished(OutcomeIncomplete)
		} else {
			s.telemetry.AttemptFinished(OutcomeFailed)
		}
		return domain.ScoreResult{}, err
	}
	s.telemetry.AttemptFinished(OutcomeScored)
	s.logger.Info("attempt scored", zap.String("attemptId", attemptID), zap.String("winner", string(res.Winner)))
	return res, nil
}

// Results re-derives the score of a complete attempt, independent of any earlier Finish call.
func (s *AttemptService) Results(ctx context.Context, attemptID string) (domain.ScoreResult, error) {
	return s.score(ctx, attemptID)
}

func (s *AttemptService) score(ctx context.Context, attemptID string) (domain.ScoreResult, error) {
	progress, err := s.progress.Progress(ctx, attemptID)
	if err != nil {
		return domain.ScoreResult{}, err
	}
	if progress.Assigned == 0 {
		return domain.ScoreResult{}, domain.ErrNoQuestions
	}
	if progress.Answered < progress.Assigned {
		return domain.ScoreResult{}, &domain.IncompleteError{
			Assigned:  progress.Assigned,
			Answered:  progress.Answered,
			Remaining: progress.Remaining,
		}
	}

	answers, err := s.attempts.ListAnswers(ctx, attemptID)
	if err != nil {
		return domain.ScoreResult{}, domain.StoreFailure("list answers", err)
	}
	ids := make([]string, len(answers))
	for i, a := range answers {
		ids[i] = a.QuestionID
	}
	questions, err := s.bank.Questions(ctx, ids)
	if err != nil {
		return domain.ScoreResult{}, fmt.Errorf("load questions: %w", err)
	}
	return s.scoring.Score(attemptID, answers, questions)
}

func questionIDs(assigned []domain.AssignedQuestion) []string {
	ids := make([]string, len(assigned))
	for i, q := range assigned {
		ids[i] = q.QuestionID
	}
	return ids
}

// localize prefers the non-empty variant for locale and falls back to the original text.
func localize(original string, variants map[string]string, locale string) string {
	if locale == "" {
		return original
	}
	if v, ok := variants[strings.ToLower(locale)]; ok && strings.TrimSpace(v) != "" {
		return v
	}
	return original
}
