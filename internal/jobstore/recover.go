package jobstore

import (
	"fmt"
	"time"

	"github.com/fairlie/keel/internal/models"
)

// RecoverInterrupted fails every job left QUEUED or RUNNING by a
// previous process. It runs once at startup, before the runner starts
// accepting new work, so no in-flight job can race the update.
func (db *DB) RecoverInterrupted() (int, error) {
	res, err := db.conn.Exec(`
		UPDATE jobs SET status = ?, error = ?, updated_at = ?
		WHERE status IN (?, ?)
	`, string(models.StatusFailed), "interrupted by restart", time.Now().UTC(),
		string(models.StatusQueued), string(models.StatusRunning))
	if err != nil {
		return 0, fmt.Errorf("jobstore: recover interrupted: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("jobstore: rows affected: %w", err)
	}
	return int(n), nil
}
