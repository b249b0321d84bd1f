// Package workspace manages per-job working directories and the
// artifacts rendered into them.
package workspace

import "github.com/fairlie/keel/internal/models"

// Provider is the interface for job workspace operations.
type Provider interface {
	// EnsureJob creates the workspace for a job and returns its absolute path.
	EnsureJob(jobID string) (string, error)
	// WriteArtifact atomically writes one artifact and returns its metadata.
	WriteArtifact(jobID, name string, data []byte) (models.ArtifactInfo, error)
	// WriteJSONArtifact marshals v with two-space indentation and writes it.
	WriteJSONArtifact(jobID, name string, v any) (models.ArtifactInfo, error)
	// ReadArtifact returns the raw bytes of one artifact.
	ReadArtifact(jobID, name string) ([]byte, error)
	// ListArtifacts returns metadata for every artifact of a job, sorted by name.
	ListArtifacts(jobID string) ([]models.ArtifactInfo, error)
	// RemoveJob deletes a job workspace and everything in it.
	RemoveJob(jobID string) error
}
