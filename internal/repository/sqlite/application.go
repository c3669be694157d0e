package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garnizeh/hireflow/internal/models"
)

const applicationSelect = `SELECT a.id, a.job_id, j.title, a.candidate_name, a.email, a.resume_ref, a.video_ref,
 a.classification, a.skills, a.match_score, a.mcq_score, a.behavioral_score, a.state, a.applied_at, a.evaluated_at
 FROM applications a LEFT JOIN jobs j ON j.id = a.job_id`

func (r *SQLiteRepo) CreateApplication(ctx context.Context, a *models.Application) (string, error) {
	if a == nil {
		return "", fmt.Errorf("application is nil")
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Classification == "" {
		a.Classification = models.DefaultClassification
	}
	if a.State == "" {
		a.State = models.StateSubmitted
	}
	skills, err := encodeStrings(a.Skills)
	if err != nil {
		return "", fmt.Errorf("encode skills: %w", err)
	}

	ts := now()
	// the job check and the insert are one statement so a concurrent
	// DeleteJob cannot leave the application orphaned
	q := `INSERT INTO applications (id, job_id, candidate_name, email, resume_ref, video_ref, classification, skills, state, applied_at)
 SELECT ?,?,?,?,?,?,?,?,?,? WHERE EXISTS (SELECT 1 FROM jobs WHERE id = ?)`
	res, err := r.conn.Exec(ctx, q, a.ID, a.JobID, a.CandidateName, a.Email, a.ResumeRef, a.VideoRef, a.Classification, skills, a.State, ts, a.JobID)
	if err != nil {
		return "", err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", fmt.Errorf("job %s: %w", a.JobID, models.ErrNotFound)
	}
	a.AppliedAt = fromMillis(ts)

	return a.ID, nil
}

func (r *SQLiteRepo) GetApplication(ctx context.Context, id string) (*models.Application, error) {
	row := r.conn.QueryRow(ctx, applicationSelect+` WHERE a.id = ?`, id)
	a, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("get application: %w", err)
	}

	return a, nil
}

func (r *SQLiteRepo) ListApplicationsByJob(ctx context.Context, jobID string) ([]models.Application, error) {
	rows, err := r.conn.QueryRows(ctx, applicationSelect+` WHERE a.job_id = ? ORDER BY a.rowid ASC`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Application{}
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		out = append(out, *a)
	}

	return out, rows.Err()
}

func (r *SQLiteRepo) MarkAssessmentPending(ctx context.Context, id string) (bool, error) {
	res, err := r.conn.Exec(ctx, `UPDATE applications SET state = ? WHERE id = ? AND state = ?`,
		models.StateAssessmentPending, id, models.StateSubmitted)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()

	return n == 1, err
}

func (r *SQLiteRepo) RecordMCQScore(ctx context.Context, id string, score float64) (bool, error) {
	res, err := r.conn.Exec(ctx,
		`UPDATE applications SET mcq_score = ?, state = ?, evaluated_at = ? WHERE id = ? AND mcq_score IS NULL AND state = ?`,
		score, models.StateEvaluated, now(), id, models.StateAssessmentPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()

	return n == 1, err
}

func (r *SQLiteRepo) UpdateMatch(ctx context.Context, id string, score float64, skills []string, classification *string) error {
	var skillsArg any
	if skills != nil {
		s, err := encodeStrings(skills)
		if err != nil {
			return fmt.Errorf("encode skills: %w", err)
		}
		skillsArg = s
	}
	var classArg any
	if classification != nil {
		classArg = *classification
	}

	res, err := r.conn.Exec(ctx,
		`UPDATE applications SET match_score = ?, skills = COALESCE(?, skills), classification = COALESCE(?, classification) WHERE id = ?`,
		score, skillsArg, classArg, id)

	return affectedOne(res, err, id)
}

func (r *SQLiteRepo) UpdateBehavioral(ctx context.Context, id string, b *models.BehavioralScore) error {
	if b == nil {
		return fmt.Errorf("behavioral score is nil: %w", models.ErrValidation)
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode behavioral score: %w", err)
	}
	res, err := r.conn.Exec(ctx, `UPDATE applications SET behavioral_score = ? WHERE id = ?`, string(raw), id)

	return affectedOne(res, err, id)
}

func (r *SQLiteRepo) UpdateClassification(ctx context.Context, id, classification string, skills []string) error {
	var skillsArg any
	if skills != nil {
		s, err := encodeStrings(skills)
		if err != nil {
			return fmt.Errorf("encode skills: %w", err)
		}
		skillsArg = s
	}
	res, err := r.conn.Exec(ctx, `UPDATE applications SET classification = ?, skills = COALESCE(?, skills) WHERE id = ?`,
		classification, skillsArg, id)

	return affectedOne(res, err, id)
}

func affectedOne(res sql.Result, err error, id string) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("application %s: %w", id, models.ErrNotFound)
	}

	return nil
}

func scanApplication(s rowScanner) (*models.Application, error) {
	var (
		a          models.Application
		jobTitle   sql.NullString
		skills     string
		match, mcq sql.NullFloat64
		behavioral sql.NullString
		appliedAt  int64
		evaluated  sql.NullInt64
	)
	if err := s.Scan(&a.ID, &a.JobID, &jobTitle, &a.CandidateName, &a.Email, &a.ResumeRef, &a.VideoRef,
		&a.Classification, &skills, &match, &mcq, &behavioral, &a.State, &appliedAt, &evaluated); err != nil {
		return nil, err
	}

	var err error
	if a.Skills, err = decodeStrings(skills); err != nil {
		return nil, fmt.Errorf("decode skills: %w", err)
	}
	if jobTitle.Valid {
		t := jobTitle.String
		a.JobTitle = &t
	}
	if match.Valid {
		v := match.Float64
		a.MatchScore = &v
	}
	if mcq.Valid {
		v := mcq.Float64
		a.MCQScore = &v
	}
	if behavioral.Valid && behavioral.String != "" {
		var b models.BehavioralScore
		if err := json.Unmarshal([]byte(behavioral.String), &b); err != nil {
			return nil, fmt.Errorf("decode behavioral score: %w", err)
		}
		a.BehavioralScore = &b
	}
	a.AppliedAt = fromMillis(appliedAt)
	if evaluated.Valid {
		t := time.UnixMilli(evaluated.Int64).UTC()
		a.EvaluatedAt = &t
	}

	return &a, nil
}
