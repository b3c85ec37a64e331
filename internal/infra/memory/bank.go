package memory

import (
	"context"
	"fmt"
	"os"

	"color-quiz-service/internal/domain"
	"gopkg.in/yaml.v3"
)

// StaticBank is a question bank backed by an in-memory list (YAML file, tests, demos).
type StaticBank struct {
	order     []string
	questions map[string]domain.Question
}

// NewStaticBank indexes questions by id. Duplicate ids and unknown types are rejected.
func NewStaticBank(questions []domain.Question) (*StaticBank, error) {
	b := &StaticBank{questions: make(map[string]domain.Question, len(questions))}
	for _, q := range questions {
		if q.ID == "" {
			return nil, fmt.Errorf("question without id")
		}
		if !q.QType.Valid() {
			return nil, fmt.Errorf("question %s: unknown qtype %q", q.ID, q.QType)
		}
		if _, dup := b.questions[q.ID]; dup {
			return nil, fmt.Errorf("duplicate question id %s", q.ID)
		}
		for i := range q.Options {
			q.Options[i].QuestionID = q.ID
			if q.Options[i].SortOrder == 0 {
				q.Options[i].SortOrder = i + 1
			}
		}
		b.questions[q.ID] = q
		b.order = append(b.order, q.ID)
	}
	return b, nil
}

type bankFile struct {
	Questions []domain.Question `yaml:"questions"`
}

// LoadBankFile reads a YAML question bank from path.
func LoadBankFile(path string) (*StaticBank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file bankFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse question bank: %w", err)
	}
	return NewStaticBank(file.Questions)
}

func (b *StaticBank) Questions(_ context.Context, ids []string) (map[string]domain.Question, error) {
	out := make(map[string]domain.Question, len(ids))
	for _, id := range ids {
		if q, ok := b.questions[id]; ok {
			out[id] = q
		}
	}
	return out, nil
}

func (b *StaticBank) Catalog(context.Context) ([]domain.QuestionRef, error) {
	refs := make([]domain.QuestionRef, 0, len(b.order))
	for _, id := range b.order {
		q := b.questions[id]
		refs = append(refs, domain.QuestionRef{ID: q.ID, QType: q.QType, Category: q.Category})
	}
	return refs, nil
}
