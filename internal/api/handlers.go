package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fairlie/keel/internal/apperr"
	"github.com/fairlie/keel/internal/classifier"
	"github.com/fairlie/keel/internal/jobservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc    *jobservice.Service
	runner *jobservice.Runner
}

// NewHandler creates a new Handler. The runner receives the ids of
// freshly created jobs.
func NewHandler(svc *jobservice.Service, runner *jobservice.Runner) *Handler {
	return &Handler{svc: svc, runner: runner}
}

// artifactName validates that the requested artifact name is a plain
// file name (no path separators, no traversal) and returns it cleaned.
func artifactName(r *http.Request) (string, error) {
	name := chi.URLParam(r, "name")
	if name == "" {
		return "", fmt.Errorf("artifact name is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid artifact name: %s", name)
	}
	return cleaned, nil
}

// artifactContentType maps the artifact extension to a response
// content type. Artifacts are always one of .sql, .json, or .md.
func artifactContentType(name string) string {
	switch filepath.Ext(name) {
	case ".json":
		return "application/json; charset=utf-8"
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".sql":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

// CreateJob handles POST /api/jobs.
//
//	@Summary		Create a replatforming job and queue it for execution
//	@Tags			jobs
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateJobRequest	true	"Job to create"
//	@Success		202		{object}	JobResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/jobs [post]
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	job, err := h.svc.CreateJob(r.Context(), jobservice.CreateJobParams{
		SourcePath:    req.SourcePath,
		SourceRepoURL: req.SourceRepoURL,
		DBStack:       req.DBStack,
		Preferences:   req.Preferences,
	})
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		} else {
			slog.Error("create job failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	if err := h.runner.Enqueue(job.ID); err != nil {
		// Nothing will ever pick the row up, so fail it rather than
		// leave a permanent QUEUED entry.
		slog.Error("enqueue job failed", slog.String("job_id", job.ID), slog.String("error", err.Error()))
		if ferr := h.svc.FailJob(r.Context(), job.ID, "job queue full"); ferr != nil {
			slog.Error("mark job failed", slog.String("job_id", job.ID), slog.String("error", ferr.Error()))
		}
		writeJSON(w, http.StatusConflict, errorBody("job queue full"))
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

// ListJobs handles GET /api/jobs.
//
//	@Summary		List jobs with optional pagination and status filtering
//	@Tags			jobs
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			status	query		string	false	"Filter by status"	Enums(QUEUED, RUNNING, DONE, FAILED)
//	@Success		200		{object}	JobListResponse
//	@Security		BearerAuth
//	@Router			/jobs [get]
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	status := q.Get("status")

	jobs, total, err := h.svc.ListJobs(r.Context(), limit, offset, status)
	if err != nil {
		slog.Error("list jobs failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"total": total,
	})
}

// GetJob handles GET /api/jobs/{id}.
//
//	@Summary		Get a single job by id
//	@Tags			jobs
//	@Produce		json
//	@Param			id	path		string	true	"Job id"
//	@Success		200	{object}	JobResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/jobs/{id} [get]
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := h.svc.GetJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get job failed", slog.String("job_id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// DeleteJob handles DELETE /api/jobs/{id}.
//
//	@Summary		Delete a finished job and its workspace
//	@Tags			jobs
//	@Param			id	path	string	true	"Job id"
//	@Success		204	"Job deleted"
//	@Failure		404	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/jobs/{id} [delete]
func (h *Handler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteJob(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		case errors.Is(err, apperr.ErrConflict):
			writeJSON(w, http.StatusConflict, errorBody("job is running"))
		default:
			slog.Error("delete job failed", slog.String("job_id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListArtifacts handles GET /api/jobs/{id}/artifacts.
//
//	@Summary		List the artifacts a job has produced so far
//	@Tags			artifacts
//	@Produce		json
//	@Param			id	path		string	true	"Job id"
//	@Success		200	{object}	ArtifactListResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/jobs/{id}/artifacts [get]
func (h *Handler) ListArtifacts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	artifacts, err := h.svc.ListArtifacts(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("list artifacts failed", slog.String("job_id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"artifacts": artifacts,
	})
}

// GetArtifact handles GET /api/jobs/{id}/artifacts/{name}.
//
//	@Summary		Download one artifact file
//	@Tags			artifacts
//	@Produce		json
//	@Param			id				path		string	true	"Job id"
//	@Param			name			path		string	true	"Artifact file name"
//	@Param			If-None-Match	header		string	false	"Checksum ETag from a previous download"
//	@Success		200				{string}	string	"Artifact content"
//	@Success		304				"Not modified"
//	@Failure		400				{object}	errResponse
//	@Failure		404				{object}	errResponse
//	@Security		BearerAuth
//	@Router			/jobs/{id}/artifacts/{name} [get]
func (h *Handler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name, err := artifactName(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	data, info, err := h.svc.ReadArtifact(r.Context(), id, name)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("read artifact failed", slog.String("job_id", id),
				slog.String("name", name), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}

	etag := `"` + info.Checksum + `"`
	w.Header().Set("ETag", etag)
	// Strip surrounding quotes if present (standard ETag format).
	if strings.Trim(r.Header.Get("If-None-Match"), `"`) == info.Checksum {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", artifactContentType(name))
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Error("write artifact failed", slog.String("name", name), slog.String("error", err.Error()))
	}
}

// Scan handles POST /api/scan.
//
//	@Summary		Scan a source tree without creating a job
//	@Tags			analysis
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ScanRequest	true	"Tree to scan"
//	@Success		200		{object}	contract.UIContract
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	contract.UIContract	"Nothing found; the notes say what was missing"
//	@Security		BearerAuth
//	@Router			/scan [post]
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	c, err := h.svc.Scan(r.Context(), req.SourcePath, req.SourceRepoURL)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNoFindings):
			// The contract still describes the tree; the status says it was empty.
			writeJSON(w, http.StatusUnprocessableEntity, c)
		case errors.Is(err, apperr.ErrInvalidInput):
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		default:
			slog.Error("scan failed", slog.String("source_path", req.SourcePath), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Plan handles POST /api/plan.
//
//	@Summary		Classify entities into storage backends without creating a job
//	@Tags			analysis
//	@Accept			json
//	@Produce		json
//	@Param			body	body		PlanRequest	true	"Entities and mode to classify with"
//	@Success		200		{object}	contract.StoragePlan
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/plan [post]
func (h *Handler) Plan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	plan, err := h.svc.Plan(r.Context(), req.Entities, classifier.Options{
		Mode:             req.Mode,
		Strategy:         req.Preferences.HybridStrategy,
		MongoEntities:    req.Preferences.MongoEntities,
		PostgresEntities: req.Preferences.PostgresEntities,
	})
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		} else {
			slog.Error("plan failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, plan)
}
