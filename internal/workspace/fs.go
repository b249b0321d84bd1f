package workspace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fairlie/keel/internal/apperr"
	"github.com/fairlie/keel/internal/checksum"
	"github.com/fairlie/keel/internal/models"
)

const artifactsDirName = "artifacts"

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to the workspaces root
}

var _ Provider = (*FS)(nil)

// NewFS creates an FS provider rooted at the given directory, creating
// it when it does not exist yet.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("workspace: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("workspace: create root: %w", err)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute workspaces root.
func (f *FS) Root() string { return f.root }

// safePath resolves a relative path against the workspaces root and
// rejects any result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("workspace: absolute paths not allowed: %s", rel)
	}
	joined := filepath.Join(f.root, cleaned)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("workspace: resolve path: %w", err)
	}
	// Ensure the resolved path is still under root.
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("workspace: path escapes workspaces root: %s", rel)
	}
	return abs, nil
}

// EnsureJob creates the job directory and its artifacts subdirectory.
func (f *FS) EnsureJob(jobID string) (string, error) {
	if jobID == "" {
		return "", fmt.Errorf("workspace: empty job id: %w", apperr.ErrInvalidInput)
	}
	abs, err := f.safePath(filepath.Join(jobID, artifactsDirName))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("workspace: create job dir: %w", err)
	}
	return filepath.Dir(abs), nil
}

// ArtifactPath resolves the absolute path of an artifact without
// touching the file system. Artifact names are bare file names; any
// path component is rejected.
func (f *FS) ArtifactPath(jobID, name string) (string, error) {
	if jobID == "" || name == "" {
		return "", fmt.Errorf("workspace: empty job id or artifact name: %w", apperr.ErrInvalidInput)
	}
	if name != filepath.Base(name) || name == ".." || name == "." {
		return "", fmt.Errorf("workspace: invalid artifact name %q: %w", name, apperr.ErrInvalidInput)
	}
	return f.safePath(filepath.Join(jobID, artifactsDirName, name))
}

// WriteArtifact atomically writes content: tmp file → fsync → rename.
func (f *FS) WriteArtifact(jobID, name string, data []byte) (models.ArtifactInfo, error) {
	abs, err := f.ArtifactPath(jobID, name)
	if err != nil {
		return models.ArtifactInfo{}, err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return models.ArtifactInfo{}, fmt.Errorf("workspace: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".keel-tmp-*")
	if err != nil {
		return models.ArtifactInfo{}, fmt.Errorf("workspace: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return models.ArtifactInfo{}, fmt.Errorf("workspace: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return models.ArtifactInfo{}, fmt.Errorf("workspace: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return models.ArtifactInfo{}, fmt.Errorf("workspace: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return models.ArtifactInfo{}, fmt.Errorf("workspace: rename: %w", err)
	}
	success = true

	info, err := os.Stat(abs)
	if err != nil {
		return models.ArtifactInfo{}, fmt.Errorf("workspace: stat artifact: %w", err)
	}
	return models.ArtifactInfo{
		Name:      name,
		Size:      info.Size(),
		Checksum:  checksum.Sum(data),
		UpdatedAt: info.ModTime(),
	}, nil
}

// WriteJSONArtifact marshals v with two-space indentation and no HTML
// escaping, then writes it like WriteArtifact.
func (f *FS) WriteJSONArtifact(jobID, name string, v any) (models.ArtifactInfo, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return models.ArtifactInfo{}, fmt.Errorf("workspace: encode %s: %w", name, err)
	}
	return f.WriteArtifact(jobID, name, buf.Bytes())
}

// ReadArtifact returns the raw bytes of one artifact.
func (f *FS) ReadArtifact(jobID, name string) ([]byte, error) {
	abs, err := f.ArtifactPath(jobID, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("workspace: artifact %s/%s: %w", jobID, name, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("workspace: read %s/%s: %w", jobID, name, err)
	}
	return data, nil
}

// ListArtifacts returns metadata for every artifact of a job, sorted
// by name.
func (f *FS) ListArtifacts(jobID string) ([]models.ArtifactInfo, error) {
	dir, err := f.safePath(filepath.Join(jobID, artifactsDirName))
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("workspace: job %s: %w", jobID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("workspace: list artifacts: %w", err)
	}
	out := make([]models.ArtifactInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("workspace: stat %s: %w", e.Name(), err)
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("workspace: read %s: %w", e.Name(), err)
		}
		out = append(out, models.ArtifactInfo{
			Name:      e.Name(),
			Size:      info.Size(),
			Checksum:  checksum.Sum(data),
			UpdatedAt: info.ModTime(),
		})
	}
	return out, nil
}

// RemoveJob deletes a job workspace and everything in it.
func (f *FS) RemoveJob(jobID string) error {
	if jobID == "" {
		return fmt.Errorf("workspace: empty job id: %w", apperr.ErrInvalidInput)
	}
	abs, err := f.safePath(jobID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(abs); err != nil {
		return fmt.Errorf("workspace: remove job %s: %w", jobID, err)
	}
	return nil
}
