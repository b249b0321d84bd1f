package jobstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fairlie/keel/internal/apperr"
	"github.com/fairlie/keel/internal/models"
)

const jobColumns = `id, source_path, source_repo_url, db_stack, preferences, status, stage, error, created_at, updated_at`

// Create inserts a new job row. The job id must be unique.
func (db *DB) Create(j *models.Job) error {
	if j.ID == "" {
		return fmt.Errorf("jobstore: job id required: %w", apperr.ErrInvalidInput)
	}
	now := time.Now().UTC()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	j.UpdatedAt = now
	if j.Status == "" {
		j.Status = models.StatusQueued
	}
	prefsJSON, _ := json.Marshal(j.Preferences)

	_, err := db.conn.Exec(`
		INSERT INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.SourcePath, j.SourceRepoURL, j.DBStack, string(prefsJSON),
		string(j.Status), string(j.Stage), j.Error, j.CreatedAt, j.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("jobstore: job %s: %w", j.ID, apperr.ErrAlreadyExists)
		}
		return fmt.Errorf("jobstore: create job: %w", err)
	}
	return nil
}

// Get returns one job by id.
func (db *DB) Get(id string) (*models.Job, error) {
	row := db.conn.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("jobstore: job %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("jobstore: get job: %w", err)
	}
	return j, nil
}

// List returns a page of jobs sorted newest first, plus the total
// count matching the filter. An empty status matches every job.
func (db *DB) List(limit, offset int, status string) ([]models.Job, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	where := ""
	args := []any{}
	if status != "" {
		where = ` WHERE status = ?`
		args = append(args, status)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM jobs`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("jobstore: count jobs: %w", err)
	}

	rows, err := db.conn.Query(
		`SELECT `+jobColumns+` FROM jobs`+where+` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("jobstore: list jobs: %w", err)
	}
	defer rows.Close()

	var out []models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("jobstore: scan job: %w", err)
		}
		out = append(out, *j)
	}
	return out, total, rows.Err()
}

// UpdateStatus transitions a job and records its stage and error text.
func (db *DB) UpdateStatus(id string, status models.JobStatus, stage models.JobStage, errMsg string) error {
	res, err := db.conn.Exec(`
		UPDATE jobs SET status = ?, stage = ?, error = ?, updated_at = ?
		WHERE id = ?
	`, string(status), string(stage), errMsg, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("jobstore: update status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("jobstore: job %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// Delete removes a job row.
func (db *DB) Delete(id string) error {
	res, err := db.conn.Exec(`DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("jobstore: delete job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("jobstore: job %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(r rowScanner) (*models.Job, error) {
	var j models.Job
	var prefs, status, stage string
	err := r.Scan(&j.ID, &j.SourcePath, &j.SourceRepoURL, &j.DBStack, &prefs,
		&status, &stage, &j.Error, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	j.Status = models.JobStatus(status)
	j.Stage = models.JobStage(stage)
	if prefs != "" {
		_ = json.Unmarshal([]byte(prefs), &j.Preferences)
	}
	return &j, nil
}
