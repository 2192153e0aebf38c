package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type Scheduler struct {
	runner       CycleRunner
	interval     time.Duration
	startDelay   time.Duration
	cycleTimeout time.Duration
	cron         *cron.Cron
	job          cron.Job
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

func NewScheduler(runner CycleRunner, interval, startDelay, cycleTimeout time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	logger := cronLogger{}

	s := &Scheduler{
		runner:       runner,
		interval:     interval,
		startDelay:   startDelay,
		cycleTimeout: cycleTimeout,
		cron:         cron.New(cron.WithLogger(logger)),
		ctx:          ctx,
		cancel:       cancel,
	}

	// The ticker and the initial run share this wrapped job, so at most one cycle
	// runs at any time and a panic in either is recovered.
	s.job = cron.NewChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)).Then(cron.FuncJob(s.runCycle))

	return s
}

func (s *Scheduler) Start() {
	s.cron.Schedule(cron.Every(s.interval), s.job)
	s.cron.Start()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		select {
		case <-s.ctx.Done():
			return
		case <-time.After(s.startDelay):
			s.job.Run()
		}
	}()

	slog.Info("Scheduler started", "interval", s.interval.String(), "start_delay", s.startDelay.String())
}

// Stop prevents new cycles and waits for a running one to finish.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
	slog.Info("Scheduler stopped")
}

// RunOnce runs a single cycle synchronously, outside the schedule.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	cycleCtx, cancel := context.WithTimeout(ctx, s.cycleTimeout)
	defer cancel()

	return s.execute(cycleCtx, NewCycleTask(s.runner))
}

func (s *Scheduler) runCycle() {
	// Shutdown does not cut a cycle short; the timeout bounds it instead.
	cycleCtx, cancel := context.WithTimeout(context.Background(), s.cycleTimeout)
	defer cancel()

	if err := s.execute(cycleCtx, NewCycleTask(s.runner)); err != nil {
		slog.Error("Cycle task execution failed", "error", err)
	}
}

func (s *Scheduler) execute(ctx context.Context, task TaskInterface) error {
	task.Start()

	if err := task.Execute(ctx); err != nil {
		return fmt.Errorf("task %s %s: %w", task.GetType(), task.GetID(), err)
	}

	slog.Debug("Task finished", "type", string(task.GetType()), "id", task.GetID(), "duration", task.GetDuration().String())
	return nil
}

// cronLogger forwards cron events to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("Cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("Cron: "+msg, append(keysAndValues, "error", err)...)
}
