package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"color-quiz-service/internal/domain"
)

// AttemptStore persists attempts, answers and option orders in SQLite.
type AttemptStore struct {
	db *sql.DB
}

func NewAttemptStore(db *sql.DB) *AttemptStore {
	return &AttemptStore{db: db}
}

func (s *AttemptStore) CreateAttempt(ctx context.Context, attempt domain.Attempt) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO quiz_attempts (id, created_at) VALUES (?, ?)`,
		attempt.ID, attempt.CreatedAt.UTC().UnixNano()); err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO quiz_attempt_questions (attempt_id, position, question_id, qtype) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, q := range attempt.Questions {
		if _, err := stmt.ExecContext(ctx, attempt.ID, q.Position, q.QuestionID, string(q.QType)); err != nil {
			return fmt.Errorf("insert attempt question: %w", err)
		}
	}
	return tx.Commit()
}

func (s *AttemptStore) GetAttempt(ctx context.Context, attemptID string) (domain.Attempt, error) {
	var createdAt int64
	err := s.db.QueryRowContext(ctx, `SELECT created_at FROM quiz_attempts WHERE id = ?`, attemptID).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, err
	}
	attempt := domain.Attempt{ID: attemptID, CreatedAt: time.Unix(0, createdAt).UTC()}

	rows, err := s.db.QueryContext(ctx,
		`SELECT position, question_id, qtype FROM quiz_attempt_questions WHERE attempt_id = ? ORDER BY position`,
		attemptID)
	if err != nil {
		return domain.Attempt{}, err
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
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM quiz_attempt_answers WHERE attempt_id = ?`, attemptID).Scan(&n)
	return n, err
}

// UpsertAnswer writes the answer row, clearing the value columns of the other question types.
// The insert only happens when the attempt exists.
func (s *AttemptStore) UpsertAnswer(ctx context.Context, answer domain.Answer) error {
	var ranking sql.NullString
	if len(answer.Ranking) > 0 {
		raw, err := json.Marshal(answer.Ranking)
		if err != nil {
			return err
		}
		ranking = sql.NullString{String: string(raw), Valid: true}
	}
	var likert sql.NullInt64
	if answer.LikertValue != nil {
		likert = sql.NullInt64{Int64: int64(*answer.LikertValue), Valid: true}
	}
	option := sql.NullString{String: answer.OptionID, Valid: answer.OptionID != ""}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO quiz_attempt_answers (attempt_id, question_id, qtype, likert_value, option_id, ranking, answered_at)
		SELECT ?, ?, ?, ?, ?, ?, ?
		WHERE EXISTS (SELECT 1 FROM quiz_attempts WHERE id = ?)
		ON CONFLICT (attempt_id, question_id) DO UPDATE SET
			qtype = excluded.qtype,
			likert_value = excluded.likert_value,
			option_id = excluded.option_id,
			ranking = excluded.ranking,
			answered_at = excluded.answered_at`,
		answer.AttemptID, answer.QuestionID, string(answer.QType), likert, option, ranking,
		answer.AnsweredAt.UTC().UnixNano(), answer.AttemptID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrAttemptNotFound
	}
	return nil
}

func (s *AttemptStore) ListAnswers(ctx context.Context, attemptID string) ([]domain.Answer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT question_id, qtype, likert_value, option_id, ranking, answered_at
		FROM quiz_attempt_answers WHERE attempt_id = ? ORDER BY question_id`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Answer
	for rows.Next() {
		var (
			a          = domain.Answer{AttemptID: attemptID}
			qtype      string
			likert     sql.NullInt64
			option     sql.NullString
			ranking    sql.NullString
			answeredAt int64
		)
		if err := rows.Scan(&a.QuestionID, &qtype, &likert, &option, &ranking, &answeredAt); err != nil {
			return nil, err
		}
		a.QType = domain.QuestionType(qtype)
		a.AnsweredAt = time.Unix(0, answeredAt).UTC()
		if likert.Valid {
			v := int(likert.Int64)
			a.LikertValue = &v
		}
		a.OptionID = option.String
		if ranking.Valid {
			if err := json.Unmarshal([]byte(ranking.String), &a.Ranking); err != nil {
				return nil, fmt.Errorf("decode ranking: %w", err)
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *AttemptStore) GetOptionOrder(ctx context.Context, scope, questionID string) ([]string, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT option_ids FROM quiz_attempt_option_orders WHERE attempt_id = ? AND question_id = ?`,
		scope, questionID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("decode option order: %w", err)
	}
	return ids, nil
}

// SaveOptionOrder keeps the first persisted permutation unless its length no longer matches,
// then returns whatever row survived.
func (s *AttemptStore) SaveOptionOrder(ctx context.Context, order domain.OptionOrder) ([]string, error) {
	raw, err := json.Marshal(order.OptionIDs)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO quiz_attempt_option_orders (attempt_id, question_id, option_ids, option_count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (attempt_id, question_id) DO UPDATE SET
			option_ids = excluded.option_ids,
			option_count = excluded.option_count
		WHERE quiz_attempt_option_orders.option_count <> excluded.option_count`,
		order.Scope, order.QuestionID, string(raw), len(order.OptionIDs))
	if err != nil {
		return nil, err
	}
	return s.GetOptionOrder(ctx, order.Scope, order.QuestionID)
}

func (s *AttemptStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
