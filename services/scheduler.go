// services/scheduler.go
package services

import (
	"context"
	"time"

	"quest-progression-system/logger"

	"github.com/go-co-op/gocron/v2"
)

// StartBackupScheduler archives every user's export on a fixed interval.
// The caller owns the returned scheduler and must Shutdown it.
func (s *ExportService) StartBackupScheduler(ctx context.Context, interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			started := time.Now()
			archived, failed, err := s.ArchiveAll(ctx)
			if err != nil {
				logger.Error("[Scheduler] backup run aborted", "error", err)
				return
			}
			logger.Info("[Scheduler] backup run finished",
				"archived", archived, "failed", failed, "took", time.Since(started).Round(time.Millisecond))
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}

	sched.Start()
	logger.Info("[Scheduler] export backups scheduled", "interval", interval)
	return sched, nil
}
