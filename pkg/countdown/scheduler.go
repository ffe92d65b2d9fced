package countdown

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

var ErrIntervalTooShort = errors.New("interval must be at least one second")

// Scheduler runs recurring tasks on whole-second boundaries. Each task can
// be cancelled on its own; Stop cancels everything.
type Scheduler struct {
	cron *cron.Cron
	now  func() time.Time
}

func NewScheduler(now func() time.Time) *Scheduler {
	logger := cronLogger{}

	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		now: now,
	}
}

type Task struct {
	id        cron.EntryID
	scheduler *Scheduler
	once      sync.Once
}

// Every schedules fn every interval, passing the scheduler's clock reading.
func (s *Scheduler) Every(interval time.Duration, fn func(now time.Time)) (*Task, error) {
	if interval < time.Second {
		return nil, ErrIntervalTooShort
	}

	id := s.cron.Schedule(cron.Every(interval), cron.FuncJob(func() {
		fn(s.now())
	}))

	return &Task{id: id, scheduler: s}, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents further runs and returns a context done once running tasks
// have returned.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (t *Task) Cancel() {
	t.once.Do(func() {
		t.scheduler.cron.Remove(t.id)
	})
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	log.Trace().Fields(keysAndValues).Str("component", "scheduler").Msg(msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	log.Error().Err(err).Fields(keysAndValues).Str("component", "scheduler").Msg(msg)
}
