package api

import (
	"context"
	"time"

	"github.com/lysyi3m/rss-relay/app/cycle"
	"github.com/lysyi3m/rss-relay/app/feed"
	"github.com/lysyi3m/rss-relay/app/store"
)

type CycleStatus interface {
	LastResult() (cycle.Result, bool)
	Sources() []feed.Source
}

type PostedCounter interface {
	Count(ctx context.Context) (int, error)
}

var (
	_ CycleStatus   = (*cycle.Runner)(nil)
	_ PostedCounter = (store.Store)(nil)
)

// Info is the static part of the status output.
type Info struct {
	Version        string
	Channel        string
	Interval       time.Duration
	MaxPosts       int
	ActiveFromHour int
	ActiveToHour   int
	DedupBackend   string
	DryRun         bool
}

type Handler struct {
	status  CycleStatus
	posted  PostedCounter
	info    Info
	started time.Time
}
