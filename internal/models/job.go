// Package models defines the domain types for Keel.
package models

import "time"

// JobStatus tracks a job through its lifecycle.
type JobStatus string

const (
	StatusQueued  JobStatus = "QUEUED"
	StatusRunning JobStatus = "RUNNING"
	StatusDone    JobStatus = "DONE"
	StatusFailed  JobStatus = "FAILED"
)

// JobStage names one step of the replatforming pipeline.
type JobStage string

const (
	StageIntake   JobStage = "INTAKE_UI_CONTRACT"
	StagePlan     JobStage = "DESIGN_STORAGE_PLAN"
	StageGenerate JobStage = "GENERATE_SCHEMA"
)

// Stages returns the pipeline stages in execution order.
func Stages() []JobStage {
	return []JobStage{StageIntake, StagePlan, StageGenerate}
}

// DBPreferences carries the optional classification tuning of a job.
type DBPreferences struct {
	MongoEntities    []string `json:"mongoEntities,omitempty"`
	PostgresEntities []string `json:"postgresEntities,omitempty"`
	HybridStrategy   string   `json:"hybridStrategy,omitempty"`
}

// Job is one replatforming run over a frontend source tree.
type Job struct {
	ID            string        `json:"id"`
	SourcePath    string        `json:"source_path"`
	SourceRepoURL string        `json:"source_repo_url,omitempty"`
	DBStack       string        `json:"db_stack"`
	Preferences   DBPreferences `json:"db_preferences"`
	Status        JobStatus     `json:"status"`
	Stage         JobStage      `json:"stage,omitempty"`
	Error         string        `json:"error,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Terminal reports whether the job has finished, successfully or not.
func (j *Job) Terminal() bool {
	return j.Status == StatusDone || j.Status == StatusFailed
}

// ArtifactInfo is a lightweight representation returned by artifact
// list operations.
type ArtifactInfo struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
