package cycle

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lysyi3m/rss-relay/app/feed"
	"github.com/lysyi3m/rss-relay/app/post"
	"github.com/lysyi3m/rss-relay/app/publish"
	"github.com/lysyi3m/rss-relay/app/store"
)

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

type FeedFetcher interface {
	Run(ctx context.Context, src feed.Source) ([]feed.Entry, error)
}

type TextExtractor interface {
	Run(ctx context.Context, entry feed.Entry, src feed.Source) feed.Content
}

type MediaResolver interface {
	Run(ctx context.Context, entry feed.Entry, allowMedia bool) (*feed.Media, string)
}

type Composer interface {
	Run(entry feed.Entry, content feed.Content, media *feed.Media) post.Post
}

type Publisher interface {
	Run(ctx context.Context, pst post.Post) (publish.Delivery, error)
}

var (
	_ FeedFetcher   = (*feed.Fetcher)(nil)
	_ TextExtractor = (*feed.TextExtractor)(nil)
	_ MediaResolver = (*feed.MediaResolver)(nil)
	_ Composer      = (*post.Composer)(nil)
	_ Publisher     = (*publish.Publisher)(nil)
)

type Settings struct {
	MaxPosts        int
	ActualityWindow time.Duration
	ActiveFromHour  int
	ActiveToHour    int
	FetchWorkers    int
}

// Result summarizes one cycle.
type Result struct {
	ID            string
	StartedAt     time.Time
	FinishedAt    time.Time
	Skipped       bool
	Sources       int
	FailedSources int
	Fetched       int
	Eligible      int
	Published     int
	Failed        int
}

type Runner struct {
	sources   []feed.Source
	fetcher   FeedFetcher
	extractor TextExtractor
	media     MediaResolver
	composer  Composer
	publisher Publisher
	store     store.Store
	settings  Settings
	clock     Clock

	mu   sync.RWMutex
	last *Result
}

func NewRunner(
	sources []feed.Source,
	fetcher FeedFetcher,
	extractor TextExtractor,
	media MediaResolver,
	composer Composer,
	publisher Publisher,
	st store.Store,
	settings Settings,
	clock Clock,
) *Runner {
	if clock == nil {
		clock = SystemClock{}
	}
	if settings.FetchWorkers < 1 {
		settings.FetchWorkers = 1
	}

	return &Runner{
		sources:   sources,
		fetcher:   fetcher,
		extractor: extractor,
		media:     media,
		composer:  composer,
		publisher: publisher,
		store:     st,
		settings:  settings,
		clock:     clock,
	}
}

type fetchResult struct {
	source  feed.Source
	entries []feed.Entry
	err     error
}

type candidate struct {
	entry  feed.Entry
	source feed.Source
}

// Run executes one cycle. Per-source and per-entry failures are logged and counted;
// an error is returned only when the dedup snapshot cannot be read.
func (r *Runner) Run(ctx context.Context, id string) (Result, error) {
	result, err := r.run(ctx, id)
	result.FinishedAt = r.clock.Now()
	r.record(result)
	return result, err
}

func (r *Runner) run(ctx context.Context, id string) (Result, error) {
	now := r.clock.Now()
	result := Result{ID: id, StartedAt: now, Sources: len(r.sources)}

	if !InActiveHours(now.Hour(), r.settings.ActiveFromHour, r.settings.ActiveToHour) {
		slog.Info("Outside active hours, skipping cycle",
			"cycle_id", id,
			"hour", now.Hour(),
			"active_from", r.settings.ActiveFromHour,
			"active_to", r.settings.ActiveToHour)
		result.Skipped = true
		return result, nil
	}

	posted, err := r.store.Snapshot(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to load posted links: %w", err)
	}

	fetched := r.fetchAll(ctx)

	var all []candidate
	for _, fr := range fetched {
		if fr.err != nil {
			result.FailedSources++
			slog.Error("Source fetch failed", "cycle_id", id, "source", fr.source.Name, "error", fr.err)
			continue
		}
		for _, entry := range fr.entries {
			all = append(all, candidate{entry: entry, source: fr.source})
		}
	}
	result.Fetched = len(all)

	eligible := r.filter(all, posted, now)
	result.Eligible = len(eligible)

	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].entry.PublishedAt.After(eligible[j].entry.PublishedAt)
	})

	if len(eligible) > r.settings.MaxPosts {
		eligible = eligible[:r.settings.MaxPosts]
	}

	for _, c := range eligible {
		if r.publishOne(ctx, id, c, posted) {
			result.Published++
		} else {
			result.Failed++
		}
	}

	if result.Published == 0 {
		slog.Info("No new posts in cycle", "cycle_id", id, "fetched", result.Fetched, "failed_sources", result.FailedSources)
	}

	return result, nil
}

func (r *Runner) fetchAll(ctx context.Context) []fetchResult {
	results := make([]fetchResult, len(r.sources))

	var g errgroup.Group
	g.SetLimit(r.settings.FetchWorkers)

	for i, src := range r.sources {
		g.Go(func() error {
			entries, err := r.fetcher.Run(ctx, src)
			results[i] = fetchResult{source: src, entries: entries, err: err}
			if err == nil {
				slog.Debug("Source fetched", "source", src.Name, "entries", len(entries))
			}
			return nil
		})
	}

	g.Wait()
	return results
}

// filter keeps entries that are unposted, inside the actuality window and not already
// seen earlier in this cycle.
func (r *Runner) filter(all []candidate, posted store.Snapshot, now time.Time) []candidate {
	cutoff := now.Add(-r.settings.ActualityWindow)
	seen := make(map[string]struct{}, len(all))

	var eligible []candidate
	for _, c := range all {
		link := c.entry.NormalizedLink
		if posted.Contains(link) {
			continue
		}
		if c.entry.PublishedAt.Before(cutoff) {
			continue
		}
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}
		eligible = append(eligible, c)
	}

	return eligible
}

func (r *Runner) publishOne(ctx context.Context, id string, c candidate, posted store.Snapshot) bool {
	content := r.extractor.Run(ctx, c.entry, c.source)

	var media *feed.Media
	if c.source.AllowMedia {
		var reason string
		media, reason = r.media.Run(ctx, c.entry, true)
		if media == nil {
			slog.Debug("No media for entry", "link", c.entry.Link, "reason", reason)
		}
	}

	pst := r.composer.Run(c.entry, content, media)

	delivery, err := r.publisher.Run(ctx, pst)
	if err != nil {
		slog.Error("Publish failed, entry stays eligible",
			"cycle_id", id,
			"source", c.source.Name,
			"link", c.entry.Link,
			"error", err)
		return false
	}

	posted.Add(c.entry.NormalizedLink)
	if err := r.store.Append(ctx, c.entry.NormalizedLink); err != nil {
		slog.Error("Failed to record posted link", "cycle_id", id, "link", c.entry.NormalizedLink, "error", err)
	}

	slog.Info("Post published",
		"cycle_id", id,
		"source", c.source.Name,
		"title", pst.Title,
		"delivery", delivery,
		"published_at", c.entry.PublishedAt)

	return true
}

func (r *Runner) record(result Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = &result
}

// LastResult returns the most recent cycle summary, if any cycle has run.
func (r *Runner) LastResult() (Result, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return Result{}, false
	}
	return *r.last, true
}

// Sources returns the configured sources in registry order.
func (r *Runner) Sources() []feed.Source {
	return r.sources
}

// InActiveHours reports whether hour falls in the inclusive range [from, to]. A range
// with from > to wraps around midnight.
func InActiveHours(hour, from, to int) bool {
	if from <= to {
		return hour >= from && hour <= to
	}
	return hour >= from || hour <= to
}
