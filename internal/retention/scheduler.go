package retention

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Job is one unit of scheduled maintenance. Run returns how many rows it
// touched.
type Job interface {
	Name() string
	Run(ctx context.Context) (int, error)
}

// Observer receives job results. telemetry.Metrics satisfies it.
type Observer interface {
	JobFinished(job string, affected int, err error)
}

// Scheduler runs its jobs once a day at a fixed UTC wall-clock time.
type Scheduler struct {
	jobs     []Job
	hour     int
	minute   int
	now      func() time.Time
	observer Observer
	log      log.FieldLogger

	wg   sync.WaitGroup
	stop chan struct{}
	once sync.Once
}

// NewScheduler schedules jobs daily at 02:00 UTC.
func NewScheduler(logger log.FieldLogger, observer Observer, jobs ...Job) *Scheduler {
	return &Scheduler{
		jobs:     jobs,
		hour:     2,
		now:      time.Now,
		observer: observer,
		log:      logger,
		stop:     make(chan struct{}),
	}
}

// NextRun returns the first run time strictly after now.
func (s *Scheduler) NextRun(now time.Time) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Start launches the scheduling goroutine. It stops when ctx is done or
// Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			next := s.NextRun(s.now())
			timer := time.NewTimer(next.Sub(s.now()))
			s.log.WithField("next_run", next.Format(time.RFC3339)).Debug("maintenance scheduled")

			select {
			case <-timer.C:
				s.RunOnce(ctx)
			case <-ctx.Done():
				timer.Stop()
				return
			case <-s.stop:
				timer.Stop()
				return
			}
		}
	}()
}

// Stop ends the scheduling goroutine and waits for an in-flight run.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
}

// RunOnce runs every job in order. A failing job does not stop the others.
func (s *Scheduler) RunOnce(ctx context.Context) {
	for _, job := range s.jobs {
		start := time.Now()
		n, err := job.Run(ctx)
		entry := s.log.WithFields(log.Fields{
			"job":      job.Name(),
			"affected": n,
			"elapsed":  time.Since(start).String(),
		})
		if err != nil {
			entry.WithError(err).Error("maintenance job failed")
		} else {
			entry.Debug("maintenance job finished")
		}
		if s.observer != nil {
			s.observer.JobFinished(job.Name(), n, err)
		}
	}
}
