// Package scanner derives a UI contract from a frontend source tree:
// entities, framework, environment variables, API client files, and
// endpoint usage. Every detector is best-effort; a file that cannot be
// read or parsed is logged and skipped, never fatal.
package scanner

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMaxFileSize is the content-read ceiling in bytes. Files larger
// than this are skipped whole by content scanners.
const DefaultMaxFileSize = 100 * 1024

// DefaultIgnoreDirs are directory names never descended into.
var DefaultIgnoreDirs = []string{
	".git", ".hg", ".svn",
	"node_modules", ".next", "dist", "build", "out", ".cache",
	"coverage", "vendor",
}

// DefaultSourceExts are the extensions text scanners consider source code.
var DefaultSourceExts = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"}

// WalkerConfig overrides walker defaults. Zero fields keep the default.
type WalkerConfig struct {
	IgnoreDirs  []string
	SourceExts  []string
	MaxFileSize int64
	Logger      *slog.Logger
}

// Walker enumerates files under a source root. All returned paths are
// root-relative with forward slashes, in lexical walk order.
type Walker struct {
	root        string // absolute
	ignoreDirs  map[string]struct{}
	sourceExts  map[string]struct{}
	maxFileSize int64
	logger      *slog.Logger
}

// NewWalker creates a walker rooted at dir, which must exist.
func NewWalker(dir string, cfg WalkerConfig) (*Walker, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("scanner: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("scanner: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scanner: root is not a directory: %s", abs)
	}

	ignore := cfg.IgnoreDirs
	if ignore == nil {
		ignore = DefaultIgnoreDirs
	}
	exts := cfg.SourceExts
	if exts == nil {
		exts = DefaultSourceExts
	}
	maxSize := cfg.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w := &Walker{
		root:        abs,
		ignoreDirs:  make(map[string]struct{}, len(ignore)),
		sourceExts:  make(map[string]struct{}, len(exts)),
		maxFileSize: maxSize,
		logger:      logger,
	}
	for _, d := range ignore {
		w.ignoreDirs[d] = struct{}{}
	}
	for _, e := range exts {
		w.sourceExts[e] = struct{}{}
	}
	return w, nil
}

// Root returns the absolute source root.
func (w *Walker) Root() string { return w.root }

// Ignored reports whether a directory name is on the deny-list.
func (w *Walker) Ignored(name string) bool {
	_, ok := w.ignoreDirs[name]
	return ok
}

// walk visits every regular file under rel (root when empty), skipping
// ignored directories. I/O errors are logged and the entry skipped.
func (w *Walker) walk(rel string, fn func(relPath string, d fs.DirEntry)) {
	base := w.root
	if rel != "" {
		base = filepath.Join(w.root, filepath.FromSlash(rel))
	}
	_ = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			w.logger.Warn("scanner: skipping unreadable entry", slog.String("path", p), slog.String("error", walkErr.Error()))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if p != base && w.Ignored(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		relPath, err := filepath.Rel(w.root, p)
		if err != nil {
			return nil
		}
		fn(filepath.ToSlash(relPath), d)
		return nil
	})
}

// SourceFiles returns every source-extension file under the root.
func (w *Walker) SourceFiles() []string {
	var out []string
	w.walk("", func(relPath string, d fs.DirEntry) {
		if _, ok := w.sourceExts[strings.ToLower(filepath.Ext(relPath))]; ok {
			out = append(out, relPath)
		}
	})
	return out
}

// FilesUnder returns files under a root-relative directory whose name
// matches ext (e.g. ".json"), recursively.
func (w *Walker) FilesUnder(relDir, ext string) []string {
	var out []string
	w.walk(relDir, func(relPath string, d fs.DirEntry) {
		if strings.EqualFold(filepath.Ext(relPath), ext) {
			out = append(out, relPath)
		}
	})
	return out
}

// ReadCapped reads a root-relative file for content scanning. Files over
// the size ceiling or failing I/O return ok=false; both outcomes are
// logged, never propagated.
func (w *Walker) ReadCapped(rel string) ([]byte, bool) {
	abs := filepath.Join(w.root, filepath.FromSlash(rel))
	info, err := os.Stat(abs)
	if err != nil {
		w.logger.Warn("scanner: stat failed", slog.String("path", rel), slog.String("error", err.Error()))
		return nil, false
	}
	if info.Size() > w.maxFileSize {
		return nil, false
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		w.logger.Warn("scanner: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return nil, false
	}
	return data, true
}

// Exists reports whether a root-relative path exists.
func (w *Walker) Exists(rel string) bool {
	_, err := os.Stat(filepath.Join(w.root, filepath.FromSlash(rel)))
	return err == nil
}

// IsDir reports whether a root-relative path is a directory.
func (w *Walker) IsDir(rel string) bool {
	info, err := os.Stat(filepath.Join(w.root, filepath.FromSlash(rel)))
	return err == nil && info.IsDir()
}

// ResolveDirs returns every directory whose forward-slash relative path
// matches rel with case-insensitive segment comparison. Conventional
// entity directories vary in casing across projects, and a tree on a
// case-sensitive file system can carry more than one spelling at once.
func (w *Walker) ResolveDirs(rel string) []string {
	matches := []string{""}
	for _, seg := range strings.Split(rel, "/") {
		var next []string
		for _, cur := range matches {
			entries, err := os.ReadDir(filepath.Join(w.root, filepath.FromSlash(cur)))
			if err != nil {
				continue
			}
			for _, e := range entries {
				if e.IsDir() && strings.EqualFold(e.Name(), seg) {
					if cur == "" {
						next = append(next, e.Name())
					} else {
						next = append(next, cur+"/"+e.Name())
					}
				}
			}
		}
		matches = next
		if len(matches) == 0 {
			return nil
		}
	}
	return matches
}

// Abs resolves a root-relative path to an absolute one.
func (w *Walker) Abs(rel string) string {
	return filepath.Join(w.root, filepath.FromSlash(rel))
}
