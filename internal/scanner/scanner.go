package scanner

import (
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/fairlie/keel/internal/apperr"
	"github.com/fairlie/keel/internal/contract"
)

// Scanner derives a UI contract from one source tree.
type Scanner struct {
	walker *Walker
	logger *slog.Logger
}

// New creates a scanner for the tree rooted at dir.
func New(dir string, cfg WalkerConfig) (*Scanner, error) {
	w, err := NewWalker(dir, cfg)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{walker: w, logger: logger}, nil
}

// Scan runs every detector and assembles the contract. The detectors
// are independent walks over the same tree, so they run concurrently;
// each one keeps its own deterministic walk order. The contract is
// returned even when ErrNoFindings reports that neither entities nor
// endpoints were discovered, with notes summarizing the outcome so a
// zero-result run can be diagnosed from the artifact alone.
func (s *Scanner) Scan(sourceRepoURL string) (*contract.UIContract, error) {
	var (
		entities    []contract.EntitySpec
		detection   contract.EntityDetection
		framework   contract.FrameworkInfo
		envVars     []contract.EnvVarUsage
		clientFiles []string
		endpoints   []contract.EndpointUsage
	)

	var g errgroup.Group
	g.Go(func() error {
		entities, detection = s.discoverEntities()
		return nil
	})
	g.Go(func() error {
		framework = s.detectFramework()
		return nil
	})
	g.Go(func() error {
		envVars = s.detectEnvVars()
		return nil
	})
	g.Go(func() error {
		clientFiles = s.detectAPIClientFiles()
		return nil
	})
	g.Go(func() error {
		endpoints = s.scanEndpoints()
		return nil
	})
	_ = g.Wait()

	c := &contract.UIContract{
		SourceRepoURL:   sourceRepoURL,
		Framework:       framework,
		EnvVars:         envVars,
		APIClientFiles:  clientFiles,
		Entities:        entities,
		EntityDetection: detection,
		EndpointsUsed:   endpoints,
	}
	c.Notes = buildNotes(c)

	s.logger.Info("scan complete",
		slog.String("root", s.walker.Root()),
		slog.Int("entities", len(entities)),
		slog.Int("endpoints", len(endpoints)),
		slog.Int("failed_files", len(detection.FilesFailed)),
		slog.String("framework", framework.Name))

	if len(entities) == 0 && len(endpoints) == 0 {
		return c, fmt.Errorf("scan: %w", apperr.ErrNoFindings)
	}
	return c, nil
}

// buildNotes summarizes what was and was not found. The notes travel
// inside the artifact so a zero-result run is explainable without logs.
func buildNotes(c *contract.UIContract) []string {
	notes := []string{}
	if len(c.Entities) > 0 {
		notes = append(notes, fmt.Sprintf("discovered %d entities across %d parsed files",
			len(c.Entities), c.EntityDetection.FilesParsed))
	} else {
		notes = append(notes, "no entities found; check conventional entity directories (src/Entities, src/entities, src/models)")
	}
	if n := len(c.EntityDetection.FilesFailed); n > 0 {
		notes = append(notes, fmt.Sprintf("%d entity files could not be parsed", n))
	}
	if len(c.EndpointsUsed) > 0 {
		notes = append(notes, fmt.Sprintf("detected %d endpoint call sites", len(c.EndpointsUsed)))
	} else {
		notes = append(notes, "no fetch or axios endpoints detected")
	}
	if c.Framework.Name == "unknown" {
		notes = append(notes, "framework could not be identified")
	}
	return notes
}
