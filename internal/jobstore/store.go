package jobstore

import "github.com/fairlie/keel/internal/models"

// Store defines the interface for job persistence operations.
// Consumers should depend on this interface rather than the concrete
// *DB type to facilitate testing with mocks.
type Store interface {
	Create(j *models.Job) error
	Get(id string) (*models.Job, error)
	List(limit, offset int, status string) ([]models.Job, int, error)
	UpdateStatus(id string, status models.JobStatus, stage models.JobStage, errMsg string) error
	Delete(id string) error
	RecoverInterrupted() (int, error)
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
