package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"finrecord/api/internal/queue"
	"finrecord/api/internal/service"
)

// Scheduler queues the periodic entitlement sweep so overdue licenses expire
// even when nobody reads them.
type Scheduler struct {
	cron  *cron.Cron
	tasks service.Enqueuer
	log   zerolog.Logger
}

func NewScheduler(tasks service.Enqueuer, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:  cron.New(cron.WithSeconds()),
		tasks: tasks,
		log:   log,
	}
}

func (s *Scheduler) Start() error {
	if s.tasks == nil {
		return nil
	}

	if _, err := s.cron.AddFunc("0 0 */1 * * *", s.enqueueSweep); err != nil { // hourly
		return err
	}

	s.cron.Start()
	return nil
}

// Stop waits for any in-flight job, but not longer than five seconds.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
	}
}

func (s *Scheduler) enqueueSweep() {
	task := queue.Task{Type: queue.TaskExpirySweep}
	if err := s.tasks.Enqueue(context.Background(), task); err != nil {
		s.log.Error().Err(err).Msg("enqueue sweep failed")
	}
}
