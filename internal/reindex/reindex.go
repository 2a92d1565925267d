// Package reindex implements the auto-reindex scheduler of spec §4.9: read
// paths that need a current index call MaybeReindex, which collapses
// concurrent callers for the same project onto one in-flight reparse and
// suppresses new work for a cooldown window after a successful run.
package reindex

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kittclouds/memctl/internal/errs"
)

// Reindexer performs one incremental reparse of projectPath, given the
// wall-clock ms of the last successful run for that project (0 if none).
// Implemented by whatever composes parser discovery + internal/ingest.Batch
// for a caller's chosen project.
type Reindexer func(ctx context.Context, projectPath string, lastIndexedMS int64) error

// future is the shared in-flight reparse for one project path.
type future struct {
	done chan struct{}
	err  error
}

// Scheduler is the keyed single-flight + cooldown guard of spec §4.9 and §5
// ("one future per project; a global map project_path -> future").
type Scheduler struct {
	mu            sync.Mutex
	inFlight      map[string]*future
	lastIndexedMS map[string]int64
	lastSuccessMS map[string]int64
	cooldown      time.Duration
	reindex       Reindexer
	logger        *zap.Logger
	now           func() int64
}

// NewScheduler builds a Scheduler. now defaults to the wall clock; tests may
// override it to make cooldown behavior deterministic.
func NewScheduler(cooldown time.Duration, reindex Reindexer, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		inFlight:      make(map[string]*future),
		lastIndexedMS: make(map[string]int64),
		lastSuccessMS: make(map[string]int64),
		cooldown:      cooldown,
		reindex:       reindex,
		logger:        logger,
		now:           func() int64 { return time.Now().UnixMilli() },
	}
}

// MaybeReindex is maybe_auto_index(project_path): if a reparse for
// projectPath is already running, the caller waits on it instead of
// starting a second one. If the last successful run finished within the
// cooldown window, this is a no-op. A failed run does not poison future
// attempts — the next eligible caller retries from scratch.
func (s *Scheduler) MaybeReindex(ctx context.Context, projectPath string) error {
	s.mu.Lock()
	if f, ok := s.inFlight[projectPath]; ok {
		s.mu.Unlock()
		return waitFor(ctx, f)
	}

	if last, ok := s.lastSuccessMS[projectPath]; ok {
		if s.now()-last < s.cooldown.Milliseconds() {
			s.mu.Unlock()
			return nil
		}
	}

	f := &future{done: make(chan struct{})}
	s.inFlight[projectPath] = f
	lastIndexed := s.lastIndexedMS[projectPath]
	s.mu.Unlock()

	go s.run(projectPath, lastIndexed, f)

	return waitFor(ctx, f)
}

func (s *Scheduler) run(projectPath string, lastIndexedMS int64, f *future) {
	defer close(f.done)

	start := s.now()
	err := s.reindex(context.Background(), projectPath, lastIndexedMS)

	s.mu.Lock()
	delete(s.inFlight, projectPath)
	if err != nil {
		f.err = errs.Wrap(errs.Storage, "Scheduler.run", "reindexing "+projectPath, err)
		s.mu.Unlock()
		s.logger.Warn("auto-reindex failed, next caller will retry", zap.String("project_path", projectPath), zap.Error(err))
		return
	}
	s.lastIndexedMS[projectPath] = start
	s.lastSuccessMS[projectPath] = s.now()
	s.mu.Unlock()
}

func waitFor(ctx context.Context, f *future) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Touch seeds lastIndexedMS for projectPath without running a reparse, for
// callers that already know the watermark from a prior manual ingest.
func (s *Scheduler) Touch(projectPath string, indexedMS int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastIndexedMS[projectPath] = indexedMS
	s.lastSuccessMS[projectPath] = s.now()
}
