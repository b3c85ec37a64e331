package app

import (
	"sort"
	"strings"

	"color-quiz-service/internal/domain"
)

// WeightingStrategy converts one recorded answer into a per-category contribution.
type WeightingStrategy interface {
	Contribution(question domain.Question, answer domain.Answer) (domain.Weights, error)
}

// DirectWeighting scores one answer as one contribution: a likert value lands on the question's
// category, a chosen option contributes its weight vector.
type DirectWeighting struct{}

func (DirectWeighting) Contribution(q domain.Question, a domain.Answer) (domain.Weights, error) {
	switch a.QType {
	case domain.QuestionLikert:
		if a.LikertValue == nil {
			return nil, domain.Invalid("likertValue", "missing for question %s", a.QuestionID)
		}
		if q.Category == "" {
			return nil, nil
		}
		return domain.Weights{q.Category: float64(*a.LikertValue)}, nil
	case domain.QuestionSingleChoice:
		opt, ok := findOption(q, a.OptionID)
		if !ok {
			// Unknown option ids never score.
			return nil, nil
		}
		return opt.Weights, nil
	}
	return nil, domain.Invalid("qtype", "direct weighting cannot score %s answers", a.QType)
}

// RankPointWeighting scores four ranked options as the sum of RankPoints[rank] x option weights.
type RankPointWeighting struct{}

func (RankPointWeighting) Contribution(q domain.Question, a domain.Answer) (domain.Weights, error) {
	if err := ValidateRanking(a.Ranking); err != nil {
		return nil, err
	}
	out := domain.Weights{}
	for _, item := range a.Ranking {
		opt, ok := findOption(q, item.OptionID)
		if !ok {
			continue
		}
		points := domain.RankPoints[item.Rank]
		for c, w := range opt.Weights {
			out[c] += points * w
		}
	}
	return out, nil
}

// ValidateRanking requires exactly four items carrying ranks 1..4 once each and distinct,
// non-empty answer ids.
func ValidateRanking(items []domain.RankedItem) error {
	if len(items) != domain.RankedItemCount {
		return domain.Invalid("ranked", "must contain exactly %d items, got %d", domain.RankedItemCount, len(items))
	}
	ranks := make(map[int]struct{}, len(items))
	ids := make(map[string]struct{}, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.OptionID) == "" {
			return domain.Invalid("ranked", "every item needs an answer id")
		}
		if _, ok := domain.RankPoints[item.Rank]; !ok {
			return domain.Invalid("ranked", "rank %d is outside 1..%d", item.Rank, domain.RankedItemCount)
		}
		if _, dup := ranks[item.Rank]; dup {
			return domain.Invalid("ranked", "rank %d is used more than once", item.Rank)
		}
		if _, dup := ids[item.OptionID]; dup {
			return domain.Invalid("ranked", "answer %s is ranked more than once", item.OptionID)
		}
		ranks[item.Rank] = struct{}{}
		ids[item.OptionID] = struct{}{}
	}
	return nil
}

// ScoringEngine aggregates answers into a score vector over a category set. It is a pure
// function of its inputs.
type ScoringEngine struct {
	categories domain.CategorySet
	strategies map[domain.QuestionType]WeightingStrategy
}

// NewScoringEngine installs direct weighting for likert and single-choice answers and rank-point
// weighting for ranked answers.
func NewScoringEngine(categories domain.CategorySet) *ScoringEngine {
	return &ScoringEngine{
		categories: categories,
		strategies: map[domain.QuestionType]WeightingStrategy{
			domain.QuestionLikert:       DirectWeighting{},
			domain.QuestionSingleChoice: DirectWeighting{},
			domain.QuestionRanked:       RankPointWeighting{},
		},
	}
}

// WithStrategy overrides the strategy for one question type.
func (e *ScoringEngine) WithStrategy(qtype domain.QuestionType, s WeightingStrategy) *ScoringEngine {
	e.strategies[qtype] = s
	return e
}

// Score sums every answer's contribution. Answers whose question is missing from questions do
// not score. Categories outside the set are ignored.
func (e *ScoringEngine) Score(attemptID string, answers []domain.Answer, questions map[string]domain.Question) (domain.ScoreResult, error) {
	// Fixed summation order keeps float totals identical across calls.
	sorted := make([]domain.Answer, len(answers))
	copy(sorted, answers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].QuestionID < sorted[j].QuestionID })

	totals := make([]float64, e.categories.Len())
	for _, a := range sorted {
		q, ok := questions[a.QuestionID]
		if !ok {
			continue
		}
		strategy, ok := e.strategies[a.QType]
		if !ok {
			return domain.ScoreResult{}, domain.Invalid("qtype", "no weighting strategy for %s", a.QType)
		}
		contribution, err := strategy.Contribution(q, a)
		if err != nil {
			return domain.ScoreResult{}, err
		}
		e.add(totals, contribution)
	}
	return e.result(attemptID, totals), nil
}

func (e *ScoringEngine) add(totals []float64, w domain.Weights) {
	for c, v := range w {
		if i, ok := e.categories.Index(c); ok {
			totals[i] += v
		}
	}
}

// result picks the maximum total; ties go to the first category in canonical
// (alphabetical) order because only a strictly greater total replaces the leader.
func (e *ScoringEngine) result(attemptID string, totals []float64) domain.ScoreResult {
	canonical := e.categories.Canonical()
	res := domain.ScoreResult{
		AttemptID: attemptID,
		Results:   make([]domain.CategoryScore, len(canonical)),
	}
	best := -1
	for i, c := range canonical {
		res.Results[i] = domain.CategoryScore{Category: c, Total: totals[i]}
		if best < 0 || totals[i] > totals[best] {
			best = i
		}
	}
	if best >= 0 {
		res.Winner = canonical[best]
	}
	return res
}

func findOption(q domain.Question, optionID string) (domain.Option, bool) {
	for _, opt := range q.Options {
		if opt.ID == optionID {
			return opt, true
		}
	}
	return domain.Option{}, false
}
