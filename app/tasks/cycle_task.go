package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/rss-relay/app/cycle"
)

type CycleRunner interface {
	Run(ctx context.Context, id string) (cycle.Result, error)
}

var _ CycleRunner = (*cycle.Runner)(nil)

// CycleTask runs one publish cycle under its own ID.
type CycleTask struct {
	Task
	runner CycleRunner
}

func NewCycleTask(runner CycleRunner) *CycleTask {
	return &CycleTask{
		Task:   NewTask(TaskTypePublishCycle),
		runner: runner,
	}
}

func (t *CycleTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result, err := t.runner.Run(ctx, t.ID)
	if err != nil {
		return fmt.Errorf("failed to run cycle: %w", err)
	}

	if result.Skipped {
		return nil
	}

	slog.Info("Cycle completed",
		"cycle_id", t.ID,
		"sources", result.Sources,
		"failed_sources", result.FailedSources,
		"fetched", result.Fetched,
		"eligible", result.Eligible,
		"published", result.Published,
		"failed", result.Failed,
		"duration", t.GetDuration().String())

	return nil
}
