package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"color-quiz-service/internal/domain"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const foreignKeyViolation = "23503"

// AttemptStore persists attempts, answers and option orders in Postgres.
type AttemptStore struct {
	pool *pgxpool.Pool
}

func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{pool: pool}
}

func (s *AttemptStore) CreateAttempt(ctx context.Context, attempt domain.Attempt) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `INSERT INTO quiz_attempts (id, created_at) VALUES ($1, $2)`, attempt.ID, attempt.CreatedAt); err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}

	batch := &pgx.Batch{}
	for _, q := range attempt.Questions {
		batch.Queue(`INSERT INTO quiz_attempt_questions (attempt_id, position, question_id, qtype) VALUES ($1, $2, $3, $4)`,
			attempt.ID, q.Position, q.QuestionID, string(q.QType))
	}
	results := tx.SendBatch(ctx, batch)
	for range attempt.Questions {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("insert attempt question: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("insert attempt questions: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *AttemptStore) GetAttempt(ctx context.Context, attemptID string) (domain.Attempt, error) {
	attempt := domain.Attempt{ID: attemptID}
	err := s.pool.QueryRow(ctx, `SELECT created_at FROM quiz_attempts WHERE id = $1`, attemptID).Scan(&attempt.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("load attempt: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT position, question_id, qtype FROM quiz_attempt_questions WHERE attempt_id = $1 ORDER BY position`,
		attemptID)
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("load attempt questions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			q     domain.AssignedQuestion
			qtype string
		)
		if err := rows.Scan(&q.Position, &q.QuestionID, &qtype); err != nil {
			return domain.Attempt{}, err
		}
		q.QType = domain.QuestionType(qtype)
		attempt.Questions = append(attempt.Questions, q)
	}
	return attempt, rows.Err()
}

func (s *AttemptStore) CountAnswers(ctx context.Context, attemptID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM quiz_attempt_answers WHERE attempt_id = $1`, attemptID).Scan(&n)
	return n, err
}

// UpsertAnswer writes the answer row and nulls the value columns of the other question types.
func (s *AttemptStore) UpsertAnswer(ctx context.Context, answer domain.Answer) error {
	ranking, err := encodeRanking(answer.Ranking)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO quiz_attempt_answers (attempt_id, question_id, qtype, likert_value, option_id, ranking, answered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (attempt_id, question_id) DO UPDATE SET
			qtype = EXCLUDED.qtype,
			likert_value = EXCLUDED.likert_value,
			option_id = EXCLUDED.option_id,
			ranking = EXCLUDED.ranking,
			answered_at = EXCLUDED.answered_at`,
		answer.AttemptID, answer.QuestionID, string(answer.QType),
		answer.LikertValue, nullString(answer.OptionID), ranking, answer.AnsweredAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return domain.ErrAttemptNotFound
	}
	return err
}

func (s *AttemptStore) ListAnswers(ctx context.Context, attemptID string) ([]domain.Answer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT question_id, qtype, likert_value, option_id, ranking, answered_at
		FROM quiz_attempt_answers WHERE attempt_id = $1 ORDER BY question_id`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Answer
	for rows.Next() {
		var (
			a        = domain.Answer{AttemptID: attemptID}
			qtype    string
			likert   *int32
			optionID *string
			ranking  []byte
		)
		if err := rows.Scan(&a.QuestionID, &qtype, &likert, &optionID, &ranking, &a.AnsweredAt); err != nil {
			return nil, err
		}
		a.QType = domain.QuestionType(qtype)
		if likert != nil {
			v := int(*likert)
			a.LikertValue = &v
		}
		if optionID != nil {
			a.OptionID = *optionID
		}
		if a.Ranking, err = decodeRanking(ranking); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *AttemptStore) GetOptionOrder(ctx context.Context, scope, questionID string) ([]string, error) {
	var ids []string
	err := s.pool.QueryRow(ctx,
		`SELECT option_ids FROM quiz_attempt_option_orders WHERE attempt_id = $1 AND question_id = $2`,
		scope, questionID).Scan(&ids)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return ids, err
}

// SaveOptionOrder relies on the (attempt_id, question_id) key: the first writer wins and later
// writers only replace a row whose option count no longer matches. The persisted row is re-read
// so concurrent callers all return the same permutation.
func (s *AttemptStore) SaveOptionOrder(ctx context.Context, order domain.OptionOrder) ([]string, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO quiz_attempt_option_orders (attempt_id, question_id, option_ids, option_count)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (attempt_id, question_id) DO UPDATE SET
			option_ids = EXCLUDED.option_ids,
			option_count = EXCLUDED.option_count
		WHERE quiz_attempt_option_orders.option_count <> EXCLUDED.option_count`,
		order.Scope, order.QuestionID, order.OptionIDs, len(order.OptionIDs))
	if err != nil {
		return nil, err
	}
	return s.GetOptionOrder(ctx, order.Scope, order.QuestionID)
}

func (s *AttemptStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func encodeRanking(items []domain.RankedItem) ([]byte, error) {
	if len(items) == 0 {
		return nil, nil
	}
	return json.Marshal(items)
}

func decodeRanking(raw []byte) ([]domain.RankedItem, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var items []domain.RankedItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode ranking: %w", err)
	}
	return items, nil
}
