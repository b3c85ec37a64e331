package domain

import "time"

// QuestionType identifies how a question is answered and scored.
type QuestionType string

const (
	QuestionLikert       QuestionType = "likert"
	QuestionSingleChoice QuestionType = "single"
	QuestionRanked       QuestionType = "ranked"
)

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionLikert, QuestionSingleChoice, QuestionRanked:
		return true
	}
	return false
}

// HasOptions reports whether questions of this type carry an option list.
func (t QuestionType) HasOptions() bool {
	return t == QuestionSingleChoice || t == QuestionRanked
}

const (
	LikertMin = 0
	LikertMax = 4

	// RankedItemCount is the number of candidate answers ranked per question.
	RankedItemCount = 4
)

// RankPoints maps a rank (1 = best) to the multiplier applied to the ranked option's weights.
var RankPoints = map[int]float64{1: 3, 2: 2, 3: 1, 4: 0}

// Category is one dimension of the score vector (e.g. a color).
type Category string

// Weights assigns a contribution to each category. Missing keys count as zero.
type Weights map[Category]float64

// AssignedQuestion is one slot of an attempt's fixed question list.
type AssignedQuestion struct {
	Position   int          `json:"position"`
	QuestionID string       `json:"questionId"`
	QType      QuestionType `json:"qtype"`
}

// Attempt is one run-through of the assessment.
type Attempt struct {
	ID        string             `json:"id"`
	CreatedAt time.Time          `json:"createdAt"`
	Questions []AssignedQuestion `json:"questions"`
}

// Assigned returns the assigned slot for questionID.
func (a Attempt) Assigned(questionID string) (AssignedQuestion, bool) {
	for _, q := range a.Questions {
		if q.QuestionID == questionID {
			return q, true
		}
	}
	return AssignedQuestion{}, false
}

// Option is a candidate answer of a single-choice or ranked question.
type Option struct {
	ID         string            `json:"id" yaml:"id"`
	QuestionID string            `json:"questionId" yaml:"-"`
	Label      string            `json:"label" yaml:"label"`
	Localized  map[string]string `json:"localized,omitempty" yaml:"localized,omitempty"`
	Weights    Weights           `json:"weights" yaml:"weights"`
	SortOrder  int               `json:"sortOrder" yaml:"sort_order"`
}

// Question is read-only bank content.
type Question struct {
	ID        string            `json:"id" yaml:"id"`
	Prompt    string            `json:"prompt" yaml:"prompt"`
	Localized map[string]string `json:"localized,omitempty" yaml:"localized,omitempty"`
	QType     QuestionType      `json:"qtype" yaml:"qtype"`
	// Category is the scored category of a likert question.
	Category Category `json:"category,omitempty" yaml:"category,omitempty"`
	Options  []Option `json:"options,omitempty" yaml:"options,omitempty"`
}

// QuestionRef is the allocator's view of an active bank question.
type QuestionRef struct {
	ID       string       `json:"id"`
	QType    QuestionType `json:"qtype"`
	Category Category     `json:"category,omitempty"`
}

// OptionOrder is the persisted permutation of a question's options for one attempt scope.
type OptionOrder struct {
	Scope      string
	QuestionID string
	OptionIDs  []string
}

// RankedItem is one ranked candidate answer.
type RankedItem struct {
	OptionID string `json:"answerId" validate:"required"`
	Rank     int    `json:"rank" validate:"required,min=1,max=4"`
}

// Answer is the single recorded answer of an (attempt, question) pair. Exactly one of
// LikertValue, OptionID or Ranking is set, matching QType.
type Answer struct {
	AttemptID   string       `json:"attemptId"`
	QuestionID  string       `json:"questionId"`
	QType       QuestionType `json:"qtype"`
	LikertValue *int         `json:"likertValue,omitempty"`
	OptionID    string       `json:"optionId,omitempty"`
	Ranking     []RankedItem `json:"ranking,omitempty"`
	AnsweredAt  time.Time    `json:"answeredAt"`
}

// Progress is derived from assigned and recorded answer counts.
type Progress struct {
	AttemptID  string `json:"attemptId"`
	Assigned   int    `json:"total"`
	Answered   int    `json:"answered"`
	Remaining  int    `json:"remaining"`
	IsComplete bool   `json:"isComplete"`
}

// NewProgress derives remaining and completion from the two counts.
func NewProgress(attemptID string, assigned, answered int) Progress {
	remaining := assigned - answered
	if remaining < 0 {
		remaining = 0
	}
	return Progress{
		AttemptID:  attemptID,
		Assigned:   assigned,
		Answered:   answered,
		Remaining:  remaining,
		IsComplete: assigned > 0 && answered >= assigned,
	}
}

// CategoryScore is one entry of the score vector.
type CategoryScore struct {
	Category Category `json:"color"`
	Total    float64  `json:"totalScore"`
}

// ScoreResult is the outcome of scoring an attempt.
type ScoreResult struct {
	AttemptID string          `json:"attemptId"`
	Results   []CategoryScore `json:"results"`
	Winner    Category        `json:"winnerColor"`
}

// Total returns the total for c, or zero.
func (r ScoreResult) Total(c Category) float64 {
	for _, s := range r.Results {
		if s.Category == c {
			return s.Total
		}
	}
	return 0
}

// OptionView is an option as shown to the respondent.
type OptionView struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// QuestionView is an assigned question assembled for display.
type QuestionView struct {
	Position int          `json:"position"`
	QType    QuestionType `json:"qtype"`
	ID       string       `json:"id"`
	Prompt   string       `json:"prompt"`
	Category Category     `json:"category,omitempty"`
	Options  []OptionView `json:"options"`
}

// AttemptView is the full ordered question list of an attempt.
type AttemptView struct {
	AttemptID string         `json:"attemptId"`
	Questions []QuestionView `json:"questions"`
}

// NextQuestion is the first unanswered question of an attempt, or Done.
type NextQuestion struct {
	AttemptID string        `json:"attemptId"`
	Done      bool          `json:"done"`
	Index     int           `json:"index"`
	Total     int           `json:"total"`
	Question  *QuestionView `json:"question,omitempty"`
}
