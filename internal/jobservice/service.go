// Package jobservice coordinates the replatforming pipeline: job
// persistence, the per-job workspace, and the scan → plan → generate
// stage loop.
package jobservice

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/fairlie/keel/internal/apperr"
	"github.com/fairlie/keel/internal/classifier"
	"github.com/fairlie/keel/internal/contract"
	"github.com/fairlie/keel/internal/jobstore"
	"github.com/fairlie/keel/internal/models"
	"github.com/fairlie/keel/internal/scanner"
	"github.com/fairlie/keel/internal/sse"
	"github.com/fairlie/keel/internal/workspace"
)

// Artifact names owned by the pipeline itself. The generator owns the
// schema artifact names.
const (
	ArtifactUIContract  = "ui-contract.json"
	ArtifactStoragePlan = "storage-plan.json"
)

// Service coordinates job persistence, workspaces, and pipeline runs.
type Service struct {
	store      jobstore.Store
	ws         workspace.Provider
	broker     *sse.Broker
	scannerCfg scanner.WalkerConfig
	logger     *slog.Logger
}

// NewService creates a job service. The broker may be nil; events are
// then dropped.
func NewService(store jobstore.Store, ws workspace.Provider, broker *sse.Broker, scannerCfg scanner.WalkerConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		ws:         ws,
		broker:     broker,
		scannerCfg: scannerCfg,
		logger:     logger,
	}
}

// CreateJobParams are the inputs for a new job.
type CreateJobParams struct {
	SourcePath    string
	SourceRepoURL string
	DBStack       string
	Preferences   models.DBPreferences
}

// CreateJob validates the source tree, persists a QUEUED job, and
// prepares its workspace. It does not start the pipeline; hand the id
// to a Runner for that.
func (s *Service) CreateJob(_ context.Context, p CreateJobParams) (*models.Job, error) {
	stack := p.DBStack
	if stack == "" {
		stack = contract.ModeHybrid
	}
	switch stack {
	case contract.ModePostgres, contract.ModeMongo, contract.ModeHybrid:
	default:
		return nil, fmt.Errorf("jobservice: unknown db stack %q: %w", p.DBStack, apperr.ErrInvalidInput)
	}

	info, err := os.Stat(p.SourcePath)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("jobservice: source path %q is not a directory: %w", p.SourcePath, apperr.ErrInvalidInput)
	}

	job := &models.Job{
		ID:            uuid.NewString(),
		SourcePath:    p.SourcePath,
		SourceRepoURL: p.SourceRepoURL,
		DBStack:       stack,
		Preferences:   p.Preferences,
		Status:        models.StatusQueued,
	}
	if err := s.store.Create(job); err != nil {
		return nil, err
	}
	if _, err := s.ws.EnsureJob(job.ID); err != nil {
		return nil, err
	}
	s.logger.Info("job created",
		slog.String("job_id", job.ID),
		slog.String("source_path", job.SourcePath),
		slog.String("db_stack", job.DBStack))
	return job, nil
}

// FailJob marks a job FAILED with the given message. It exists for
// jobs that never reach the runner; without it their rows would sit
// QUEUED forever.
func (s *Service) FailJob(_ context.Context, id, msg string) error {
	if err := s.store.UpdateStatus(id, models.StatusFailed, "", msg); err != nil {
		return err
	}
	s.publish(sse.JobEventFailed, id, "", msg)
	return nil
}

// GetJob returns one job by id.
func (s *Service) GetJob(_ context.Context, id string) (*models.Job, error) {
	return s.store.Get(id)
}

// ListJobs returns a page of jobs plus the total count.
func (s *Service) ListJobs(_ context.Context, limit, offset int, status string) ([]models.Job, int, error) {
	jobs, total, err := s.store.List(limit, offset, status)
	if err != nil {
		return nil, 0, err
	}
	return nonNilSlice(jobs), total, nil
}

// DeleteJob removes a finished job and its workspace. Running jobs
// cannot be deleted.
func (s *Service) DeleteJob(_ context.Context, id string) error {
	job, err := s.store.Get(id)
	if err != nil {
		return err
	}
	if job.Status == models.StatusRunning {
		return fmt.Errorf("jobservice: job %s is running: %w", id, apperr.ErrConflict)
	}
	if err := s.ws.RemoveJob(id); err != nil {
		return err
	}
	return s.store.Delete(id)
}

// ListArtifacts returns metadata for every artifact of a job.
func (s *Service) ListArtifacts(_ context.Context, id string) ([]models.ArtifactInfo, error) {
	if _, err := s.store.Get(id); err != nil {
		return nil, err
	}
	arts, err := s.ws.ListArtifacts(id)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(arts), nil
}

// ReadArtifact returns one artifact's bytes and metadata.
func (s *Service) ReadArtifact(_ context.Context, id, name string) ([]byte, models.ArtifactInfo, error) {
	if _, err := s.store.Get(id); err != nil {
		return nil, models.ArtifactInfo{}, err
	}
	data, err := s.ws.ReadArtifact(id, name)
	if err != nil {
		return nil, models.ArtifactInfo{}, err
	}
	arts, err := s.ws.ListArtifacts(id)
	if err != nil {
		return nil, models.ArtifactInfo{}, err
	}
	for _, a := range arts {
		if a.Name == name {
			return data, a, nil
		}
	}
	return nil, models.ArtifactInfo{}, fmt.Errorf("jobservice: artifact %s/%s: %w", id, name, apperr.ErrNotFound)
}

// Scan runs the scanner synchronously without creating a job. A tree
// with no findings yields both the contract (its notes say what was
// missing) and ErrNoFindings, so callers can choose how loudly to
// report emptiness.
func (s *Service) Scan(_ context.Context, sourcePath, sourceRepoURL string) (*contract.UIContract, error) {
	sc, err := scanner.New(sourcePath, s.scannerCfg)
	if err != nil {
		return nil, fmt.Errorf("jobservice: %v: %w", err, apperr.ErrInvalidInput)
	}
	return sc.Scan(sourceRepoURL)
}

// Plan classifies entities synchronously without creating a job.
func (s *Service) Plan(_ context.Context, entities []contract.EntitySpec, opts classifier.Options) (contract.StoragePlan, error) {
	return classifier.Classify(entities, opts)
}

func (s *Service) publish(kind, jobID, stage, errMsg string) {
	if s.broker != nil {
		s.broker.PublishJobEvent(kind, jobID, stage, errMsg)
	}
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
