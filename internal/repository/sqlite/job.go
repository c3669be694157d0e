package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/garnizeh/hireflow/internal/models"
)

const jobColumns = `id, title, description, location, salary, requirements, assessment, created, updated`

func (r *SQLiteRepo) CreateJob(ctx context.Context, j *models.Job) (string, error) {
	if j == nil {
		return "", fmt.Errorf("job is nil")
	}
	if j.ID == "" {
		j.ID = uuid.NewString()
	}

	reqs, err := encodeStrings(j.Requirements)
	if err != nil {
		return "", fmt.Errorf("encode requirements: %w", err)
	}
	asmt, err := json.Marshal(j.Assessment)
	if err != nil {
		return "", fmt.Errorf("encode assessment: %w", err)
	}

	ts := now()
	q := `INSERT INTO jobs (` + jobColumns + `) VALUES (?,?,?,?,?,?,?,?,?)`
	if _, err := r.conn.Exec(ctx, q, j.ID, j.Title, j.Description, j.Location, j.Salary, reqs, string(asmt), ts, ts); err != nil {
		return "", err
	}
	j.Created = fromMillis(ts)
	j.Updated = j.Created

	return j.ID, nil
}

func (r *SQLiteRepo) GetJob(ctx context.Context, id string) (*models.Job, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("get job: %w", err)
	}

	return j, nil
}

// ListJobs returns all jobs, newest first.
func (r *SQLiteRepo) ListJobs(ctx context.Context) ([]models.Job, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, *j)
	}

	return out, rows.Err()
}

func (r *SQLiteRepo) DeleteJob(ctx context.Context, id string) error {
	tx, err := r.conn.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var pending int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM applications WHERE job_id = ? AND state <> ?`, id, models.StateEvaluated).Scan(&pending); err != nil {
		return fmt.Errorf("count pending applications: %w", err)
	}
	if pending > 0 {
		return fmt.Errorf("job %s has %d pending applications: %w", id, pending, models.ErrJobInUse)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %s: %w", id, models.ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM mcq_questions WHERE job_id = ?`, id); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	r.logger.Info("job deleted", "job_id", id)

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(s rowScanner) (*models.Job, error) {
	var (
		j            models.Job
		reqs, asmt   string
		created, upd int64
	)
	if err := s.Scan(&j.ID, &j.Title, &j.Description, &j.Location, &j.Salary, &reqs, &asmt, &created, &upd); err != nil {
		return nil, err
	}

	var err error
	if j.Requirements, err = decodeStrings(reqs); err != nil {
		return nil, fmt.Errorf("decode requirements: %w", err)
	}
	if asmt != "" {
		if err := json.Unmarshal([]byte(asmt), &j.Assessment); err != nil {
			return nil, fmt.Errorf("decode assessment: %w", err)
		}
	}
	j.Created = fromMillis(created)
	j.Updated = fromMillis(upd)

	return &j, nil
}
