// Package scheduler runs the periodic maintenance jobs: expiring approved
// policies whose review date has passed and requeueing enhancement jobs that
// stalled while running.
//
// Both jobs are plain functions on the store and can be run directly; the
// Scheduler runs them on cron schedules.
//
//	s := scheduler.New(store, cfg, logger)
//	if err := s.Start(ctx); err != nil {
//	    return err
//	}
//	defer s.Stop()
package scheduler
