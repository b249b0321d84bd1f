package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period between a burst of file change
// events and the rescan they trigger.
const DefaultDebounce = 200 * time.Millisecond

// WatchCallback is invoked after each debounced burst of changes.
type WatchCallback func()

// Watch starts an fsnotify watcher on the source root and invokes cb
// after each debounced burst of file changes until ctx is cancelled.
//
// New directories created at runtime are automatically added to the
// watch list; ignored directories (node_modules and friends) are never
// watched, so churn inside them cannot trigger rescans.
func (s *Scanner) Watch(ctx context.Context, debounce time.Duration, cb WatchCallback) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("scanner: start watcher: %w", err)
	}
	defer w.Close()

	root := s.walker.Root()
	if err := s.addDirsRecursive(w, root); err != nil {
		return fmt.Errorf("scanner: watch tree: %w", err)
	}

	s.logger.Info("watcher: started", slog.String("root", root))

	// timer debounces rescans across event bursts.
	var timer *time.Timer
	var timerCh <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			s.logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			cb()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if s.underIgnoredDir(root, ev.Name) {
				continue
			}

			// New directories join the watch list before debouncing.
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := s.addDirsRecursive(w, ev.Name); addErr != nil {
						s.logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					schedule()
					continue
				}
			}

			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				s.logger.Debug("watcher: change",
					slog.String("path", ev.Name),
					slog.String("op", ev.Op.String()))
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// underIgnoredDir reports whether an absolute event path sits inside an
// ignored directory.
func (s *Scanner) underIgnoredDir(root, abs string) bool {
	rel, err := filepath.Rel(root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return true
	}
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		if s.walker.Ignored(seg) {
			return true
		}
	}
	return false
}

// addDirsRecursive adds root and all its non-ignored subdirectories to
// the watcher.
func (s *Scanner) addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && s.walker.Ignored(d.Name()) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
