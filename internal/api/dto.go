package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/fairlie/keel/internal/contract"
	"github.com/fairlie/keel/internal/models"
)

// CreateJobRequest is the request body for creating a replatforming job.
type CreateJobRequest struct {
	SourcePath    string               `json:"source_path" example:"/srv/checkouts/shop-ui" validate:"required"`
	SourceRepoURL string               `json:"source_repo_url,omitempty" example:"https://github.com/acme/shop-ui"`
	DBStack       string               `json:"db_stack,omitempty" example:"hybrid"`
	Preferences   models.DBPreferences `json:"db_preferences"`
}

// Validate checks the request body. An empty db_stack is allowed; the
// service fills in the default mode.
func (r *CreateJobRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.SourcePath, validation.Required),
		validation.Field(&r.DBStack,
			validation.In(contract.ModePostgres, contract.ModeMongo, contract.ModeHybrid)),
	)
}

// ScanRequest is the request body for an ad-hoc source scan.
type ScanRequest struct {
	SourcePath    string `json:"source_path" example:"/srv/checkouts/shop-ui" validate:"required"`
	SourceRepoURL string `json:"source_repo_url,omitempty" example:"https://github.com/acme/shop-ui"`
}

// Validate checks the request body.
func (r *ScanRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.SourcePath, validation.Required),
	)
}

// PlanRequest is the request body for an ad-hoc classification run.
type PlanRequest struct {
	Entities    []contract.EntitySpec `json:"entities" validate:"required"`
	Mode        string                `json:"mode,omitempty" example:"hybrid"`
	Preferences models.DBPreferences  `json:"db_preferences"`
}

// Validate checks the request body.
func (r *PlanRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Entities, validation.Required),
		validation.Field(&r.Mode,
			validation.In(contract.ModePostgres, contract.ModeMongo, contract.ModeHybrid)),
	)
}

// JobResponse is the full job representation (aliased from the domain layer).
type JobResponse = models.Job

// JobListResponse wraps paginated job listings.
type JobListResponse struct {
	Jobs  []models.Job `json:"jobs" validate:"required"`
	Total int          `json:"total" example:"42" validate:"required"`
}

// ArtifactListResponse wraps the artifact metadata of one job.
type ArtifactListResponse struct {
	Artifacts []models.ArtifactInfo `json:"artifacts" validate:"required"`
}
