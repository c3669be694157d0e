package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/garnizeh/hireflow/internal/models"
)

func (r *SQLiteRepo) ListQuestions(ctx context.Context, jobID string) ([]models.MCQQuestion, error) {
	rows, err := r.conn.QueryRows(ctx,
		`SELECT id, job_id, position, topic, question, options, answer, created FROM mcq_questions WHERE job_id = ? ORDER BY position ASC`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.MCQQuestion{}
	for rows.Next() {
		var (
			q       models.MCQQuestion
			opts    string
			created int64
		)
		if err := rows.Scan(&q.ID, &q.JobID, &q.Position, &q.Topic, &q.Question, &opts, &q.Answer, &created); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if q.Options, err = decodeStrings(opts); err != nil {
			return nil, fmt.Errorf("decode options: %w", err)
		}
		q.Created = fromMillis(created)
		out = append(out, q)
	}

	return out, rows.Err()
}

func (r *SQLiteRepo) InsertQuestionsIfEmpty(ctx context.Context, jobID string, qs []models.MCQQuestion) (bool, error) {
	tx, err := r.conn.BeginTx(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	var existing int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM mcq_questions WHERE job_id = ?`, jobID).Scan(&existing); err != nil {
		return false, fmt.Errorf("count questions: %w", err)
	}
	if existing > 0 {
		return false, nil
	}

	ts := now()
	for i := range qs {
		q := &qs[i]
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		q.JobID = jobID
		q.Position = i
		opts, err := encodeStrings(q.Options)
		if err != nil {
			return false, fmt.Errorf("encode options: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO mcq_questions (id, job_id, position, topic, question, options, answer, created) VALUES (?,?,?,?,?,?,?,?)`,
			q.ID, jobID, i, q.Topic, q.Question, opts, q.Answer, ts); err != nil {
			return false, fmt.Errorf("insert question %d: %w", i, err)
		}
		q.Created = fromMillis(ts)
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}

	return true, nil
}
