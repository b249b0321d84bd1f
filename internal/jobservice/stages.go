package jobservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fairlie/keel/internal/apperr"
	"github.com/fairlie/keel/internal/classifier"
	"github.com/fairlie/keel/internal/contract"
	"github.com/fairlie/keel/internal/generator"
	"github.com/fairlie/keel/internal/models"
	"github.com/fairlie/keel/internal/scanner"
	"github.com/fairlie/keel/internal/sse"
)

// RunJob executes the pipeline for one job: each stage in order,
// halting at the first failure. The failed stage name and error text
// are recorded on the job; later stages never run.
func (s *Service) RunJob(ctx context.Context, id string) error {
	job, err := s.store.Get(id)
	if err != nil {
		return err
	}

	for _, stage := range models.Stages() {
		if ctx.Err() != nil {
			msg := "interrupted by shutdown"
			_ = s.store.UpdateStatus(job.ID, models.StatusFailed, stage, msg)
			s.publish(sse.JobEventFailed, job.ID, string(stage), msg)
			return ctx.Err()
		}

		if err := s.store.UpdateStatus(job.ID, models.StatusRunning, stage, ""); err != nil {
			return err
		}
		s.publish(sse.JobEventStage, job.ID, string(stage), "")
		s.logger.Info("job stage started",
			slog.String("job_id", job.ID),
			slog.String("stage", string(stage)))

		if err := s.runStage(ctx, job, stage); err != nil {
			msg := err.Error()
			_ = s.store.UpdateStatus(job.ID, models.StatusFailed, stage, msg)
			s.publish(sse.JobEventFailed, job.ID, string(stage), msg)
			s.logger.Error("job stage failed",
				slog.String("job_id", job.ID),
				slog.String("stage", string(stage)),
				slog.String("error", msg))
			return err
		}
	}

	if err := s.store.UpdateStatus(job.ID, models.StatusDone, models.StageGenerate, ""); err != nil {
		return err
	}
	s.publish(sse.JobEventDone, job.ID, "", "")
	s.logger.Info("job done", slog.String("job_id", job.ID))
	return nil
}

func (s *Service) runStage(ctx context.Context, job *models.Job, stage models.JobStage) error {
	switch stage {
	case models.StageIntake:
		return s.runIntake(ctx, job)
	case models.StagePlan:
		return s.runPlan(ctx, job)
	case models.StageGenerate:
		return s.runGenerate(ctx, job)
	}
	return fmt.Errorf("jobservice: unknown stage %q", stage)
}

// runIntake scans the source tree and writes ui-contract.json. A scan
// with no findings still writes the contract (its notes explain what
// was missing) and then fails the stage.
func (s *Service) runIntake(_ context.Context, job *models.Job) error {
	sc, err := scanner.New(job.SourcePath, s.scannerCfg)
	if err != nil {
		return err
	}
	c, scanErr := sc.Scan(job.SourceRepoURL)
	if c != nil {
		if _, werr := s.ws.WriteJSONArtifact(job.ID, ArtifactUIContract, c); werr != nil {
			return werr
		}
	}
	return scanErr
}

// runPlan classifies the contract's entities and writes
// storage-plan.json.
func (s *Service) runPlan(_ context.Context, job *models.Job) error {
	c, err := s.readContract(job.ID)
	if err != nil {
		return err
	}
	plan, err := classifier.Classify(c.Entities, classifier.Options{
		Mode:             job.DBStack,
		Strategy:         job.Preferences.HybridStrategy,
		MongoEntities:    job.Preferences.MongoEntities,
		PostgresEntities: job.Preferences.PostgresEntities,
	})
	if err != nil {
		return err
	}
	_, err = s.ws.WriteJSONArtifact(job.ID, ArtifactStoragePlan, plan)
	return err
}

// runGenerate renders the schema artifacts from the contract and plan.
func (s *Service) runGenerate(_ context.Context, job *models.Job) error {
	c, err := s.readContract(job.ID)
	if err != nil {
		return err
	}
	data, err := s.ws.ReadArtifact(job.ID, ArtifactStoragePlan)
	if err != nil {
		return err
	}
	var plan contract.StoragePlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return fmt.Errorf("jobservice: decode storage plan: %w", err)
	}

	arts, err := generator.Generate(c.Entities, plan)
	if err != nil {
		return err
	}
	for _, a := range arts {
		if _, err := s.ws.WriteArtifact(job.ID, a.Name, a.Data); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) readContract(jobID string) (*contract.UIContract, error) {
	data, err := s.ws.ReadArtifact(jobID, ArtifactUIContract)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("jobservice: ui contract missing, intake never ran: %w", err)
		}
		return nil, err
	}
	var c contract.UIContract
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("jobservice: decode ui contract: %w", err)
	}
	return &c, nil
}
