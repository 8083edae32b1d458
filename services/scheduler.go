// services/scheduler.go
package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// PublishInterval is how often scheduled videos are checked.
const PublishInterval = time.Minute

// StartPublishScheduler runs PublishDue every minute until ctx is done.
// The returned scheduler is already started.
func (s *CatalogService) StartPublishScheduler(ctx context.Context) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithClock(s.Clock))
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(PublishInterval),
		gocron.NewTask(func() {
			if _, err := s.PublishDue(ctx); err != nil {
				log.Printf("[Scheduler] DB error: %v", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}

	sched.Start()
	go func() {
		<-ctx.Done()
		if err := sched.Shutdown(); err != nil {
			log.Printf("[Scheduler] shutdown: %v", err)
		}
	}()
	return sched, nil
}
