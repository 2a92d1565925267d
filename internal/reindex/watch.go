package reindex

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher hints the Scheduler that a project's transcript folder changed,
// so the next read-path call doesn't have to wait out a stale cooldown
// before noticing new sessions. It never calls MaybeReindex itself — spec
// §4.9 keeps the read-path trigger as the required mechanism; a watch
// event only clears the cooldown early, strictly additive.
type Watcher struct {
	scheduler *Scheduler
	watcher   *fsnotify.Watcher
	logger    *zap.Logger
	folders   map[string]string // watched directory -> project path
}

// NewWatcher opens an fsnotify watcher bound to scheduler. Call Add for
// each project folder to watch, then Run in its own goroutine.
func NewWatcher(scheduler *Scheduler, logger *zap.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		scheduler: scheduler,
		watcher:   w,
		logger:    logger,
		folders:   make(map[string]string),
	}, nil
}

// Add starts watching folder for new/changed session files, attributing
// events in it to projectPath.
func (w *Watcher) Add(folder, projectPath string) error {
	if err := w.watcher.Add(folder); err != nil {
		return err
	}
	w.folders[folder] = projectPath
	return nil
}

// Close releases the underlying fsnotify handle.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Run drains fsnotify events until ctx is canceled, clearing the cooldown
// for a project as soon as one of its session files changes so the next
// read-path call reindexes instead of waiting out the window.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("fsnotify watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !strings.HasSuffix(ev.Name, ".jsonl") {
		return
	}
	if !(ev.Op&(fsnotify.Write|fsnotify.Create) != 0) {
		return
	}
	dir := filepath.Dir(ev.Name)
	projectPath, ok := w.folders[dir]
	if !ok {
		return
	}
	w.scheduler.clearCooldown(projectPath)
}

// clearCooldown drops the recorded last-success time for projectPath so the
// next MaybeReindex call runs instead of short-circuiting on cooldown.
func (s *Scheduler) clearCooldown(projectPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lastSuccessMS, projectPath)
}
