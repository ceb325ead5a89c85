// Package jobs runs periodic maintenance tasks.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// TimelinePruner trims materialized timelines back to their capacity.
type TimelinePruner interface {
	PruneAll(ctx context.Context) (int, error)
}

// Scheduler owns the cron runner for background jobs.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cron.VerbosePrintfLogger(&log.Logger)), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		timeout: 5 * time.Minute,
	}
}

// AddTimelinePruning registers pruner on schedule, a cron expression or
// "@every <duration>".
func (s *Scheduler) AddTimelinePruning(schedule string, pruner TimelinePruner) error {
	if _, err := s.cron.AddFunc(schedule, func() { RunTimelinePruning(context.Background(), pruner, s.timeout) }); err != nil {
		return fmt.Errorf("schedule timeline pruning %q: %w", schedule, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// RunTimelinePruning executes one pruning pass and logs the outcome.
func RunTimelinePruning(ctx context.Context, pruner TimelinePruner, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	pruned, err := pruner.PruneAll(ctx)
	if err != nil {
		log.Error().Err(err).Int("pruned", pruned).Msg("Timeline pruning failed")
		return
	}
	log.Info().Int("pruned", pruned).Dur("took", time.Since(start)).Msg("Timeline pruning finished")
}
