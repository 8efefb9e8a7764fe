package engine

import (
	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
)

// Scheduler runs a periodic maintenance sweep over every collection,
// grounded on the teacher's internal/services/scheduler.Service use of
// robfig/cron/v3. It is additive robustness: Tree.flushLocked already
// prunes inline after every flush, so the sweep mainly catches
// collections that sit below MemtableThreshold indefinitely and would
// otherwise never flush (and so never prune) between process restarts.
type Scheduler struct {
	cron   *cron.Cron
	engine *Engine
	logger arbor.ILogger
}

// NewScheduler builds a Scheduler that, on the given cron expression,
// force-flushes and conditionally compacts every collection the engine
// currently knows about.
func NewScheduler(e *Engine, schedule string, logger arbor.ILogger) (*Scheduler, error) {
	s := &Scheduler{cron: cron.New(cron.WithSeconds()), engine: e, logger: logger}
	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins the cron scheduler in its own goroutine (cron.Cron.Start
// already does this internally).
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Msg("engine: maintenance scheduler started")
}

// Stop halts the scheduler and waits for any in-flight sweep to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("engine: maintenance scheduler stopped")
}

func (s *Scheduler) sweep() {
	s.engine.mu.RLock()
	names := make([]string, 0, len(s.engine.collections))
	for name := range s.engine.collections {
		names = append(names, name)
	}
	s.engine.mu.RUnlock()

	for _, name := range names {
		tree, err := s.engine.Collection(name)
		if err != nil {
			continue // dropped between snapshot and sweep
		}
		if err := tree.Flush(); err != nil {
			s.logger.Warn().Err(err).Str("collection", name).Msg("engine: scheduled flush failed")
			continue
		}
		if tree.RunCount() >= s.engine.cfg.Engine.JSTableThreshold {
			if err := tree.Compact(); err != nil {
				s.logger.Warn().Err(err).Str("collection", name).Msg("engine: scheduled compaction failed")
			}
		}
	}
	s.logger.Debug().Int("collections", len(names)).Msg("engine: maintenance sweep complete")
}
