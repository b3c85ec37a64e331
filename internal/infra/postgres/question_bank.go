package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"color-quiz-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionBank loads questions and their options from Postgres.
type QuestionBank struct {
	pool *pgxpool.Pool
}

func NewQuestionBank(pool *pgxpool.Pool) *QuestionBank {
	return &QuestionBank{pool: pool}
}

func (b *QuestionBank) Questions(ctx context.Context, ids []string) (map[string]domain.Question, error) {
	out := make(map[string]domain.Question, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := b.pool.Query(ctx,
		`SELECT id, prompt, localized, qtype, category FROM questions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			q         domain.Question
			localized []byte
			qtype     string
			category  string
		)
		if err := rows.Scan(&q.ID, &q.Prompt, &localized, &qtype, &category); err != nil {
			return nil, err
		}
		if err := unmarshalMap(localized, &q.Localized); err != nil {
			return nil, fmt.Errorf("question %s localized: %w", q.ID, err)
		}
		q.QType = domain.QuestionType(qtype)
		q.Category = domain.Category(category)
		out[q.ID] = q
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := b.attachOptions(ctx, ids, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *QuestionBank) attachOptions(ctx context.Context, ids []string, questions map[string]domain.Question) error {
	rows, err := b.pool.Query(ctx, `
		SELECT id, question_id, label, localized, weights, sort_order
		FROM question_options WHERE question_id = ANY($1)
		ORDER BY question_id, sort_order, id`, ids)
	if err != nil {
		return fmt.Errorf("load options: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			opt       domain.Option
			localized []byte
			weights   []byte
		)
		if err := rows.Scan(&opt.ID, &opt.QuestionID, &opt.Label, &localized, &weights, &opt.SortOrder); err != nil {
			return err
		}
		if err := unmarshalMap(localized, &opt.Localized); err != nil {
			return fmt.Errorf("option %s localized: %w", opt.ID, err)
		}
		if err := unmarshalMap(weights, &opt.Weights); err != nil {
			return fmt.Errorf("option %s weights: %w", opt.ID, err)
		}
		q, ok := questions[opt.QuestionID]
		if !ok {
			continue
		}
		q.Options = append(q.Options, opt)
		questions[opt.QuestionID] = q
	}
	return rows.Err()
}

func (b *QuestionBank) Catalog(ctx context.Context) ([]domain.QuestionRef, error) {
	rows, err := b.pool.Query(ctx, `SELECT id, qtype, category FROM questions WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	defer rows.Close()

	var refs []domain.QuestionRef
	for rows.Next() {
		var ref domain.QuestionRef
		var qtype, category string
		if err := rows.Scan(&ref.ID, &qtype, &category); err != nil {
			return nil, err
		}
		ref.QType = domain.QuestionType(qtype)
		ref.Category = domain.Category(category)
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func unmarshalMap[T any](raw []byte, dst *T) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
