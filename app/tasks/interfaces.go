package tasks

import "context"

// TaskSchedulerInterface runs publish cycles on a fixed interval, one at a time.
//
//	scheduler := NewScheduler(runner, interval, startDelay, cycleTimeout)
//	scheduler.Start()
//	defer scheduler.Stop()
type TaskSchedulerInterface interface {
	Start()
	Stop()
	RunOnce(ctx context.Context) error
}
