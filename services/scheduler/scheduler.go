package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/masomo-lms/core"
)

const jobTimeout = 5 * time.Minute

// Job is a periodic task. Its context is cancelled when the scheduler stops.
type Job func(ctx context.Context) error

// Scheduler runs jobs on cron schedules, never two runs of the same job at once.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	logger core.Logger
}

func New(logger core.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger))),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Add registers the job under a standard 5 fields cron spec (eg: "0 8 * * *").
func (s *Scheduler) Add(name, spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() { s.run(name, job) })
	return errors.Wrapf(err, "scheduling %s job", name)
}

func (s *Scheduler) run(name string, job Job) {
	ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
	defer cancel()

	start := time.Now()
	if err := job(ctx); err != nil {
		s.logger.Error(fmt.Sprintf("running %s job: %v", name, err), err)
		return
	}
	s.logger.Info(fmt.Sprintf("%s job done in %s", name, time.Since(start)))
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop cancels the running jobs and waits for them to return, or for ctx to be done.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// RemindersJob sends the pending grading reminders.
func RemindersJob(svc interface {
	SendPendingReminders(ctx context.Context) (int, error)
}, logger core.Logger) Job {
	return func(ctx context.Context) error {
		n, err := svc.SendPendingReminders(ctx)
		if err != nil {
			return err
		}
		logger.Info(fmt.Sprintf("sent %d grading reminder(s)", n))
		return nil
	}
}
