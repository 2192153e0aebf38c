package cycle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lysyi3m/rss-relay/app/feed"
	"github.com/lysyi3m/rss-relay/app/post"
	"github.com/lysyi3m/rss-relay/app/publish"
	"github.com/lysyi3m/rss-relay/app/store"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

type fakeFetcher struct {
	mu      sync.Mutex
	entries map[string][]feed.Entry
	errs    map[string]error
	calls   int
}

func (f *fakeFetcher) Run(ctx context.Context, src feed.Source) ([]feed.Entry, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if err := f.errs[src.Name]; err != nil {
		return nil, err
	}
	return f.entries[src.Name], nil
}

type fakeExtractor struct{}

func (fakeExtractor) Run(ctx context.Context, entry feed.Entry, src feed.Source) feed.Content {
	return feed.Content{Excerpt: "excerpt of " + entry.Title}
}

type fakeMedia struct {
	calls int
}

func (f *fakeMedia) Run(ctx context.Context, entry feed.Entry, allowMedia bool) (*feed.Media, string) {
	f.calls++
	return &feed.Media{Kind: feed.MediaPhoto, URL: entry.Link + ".jpg"}, ""
}

type fakeComposer struct{}

func (fakeComposer) Run(entry feed.Entry, content feed.Content, media *feed.Media) post.Post {
	return post.Post{Link: entry.Link, SourceName: entry.SourceName, Title: entry.Title, Caption: entry.Title, Media: media}
}

type fakePublisher struct {
	published []post.Post
	fail      map[string]error
	delivery  publish.Delivery
}

func (p *fakePublisher) Run(ctx context.Context, pst post.Post) (publish.Delivery, error) {
	if err := p.fail[pst.Link]; err != nil {
		return "", err
	}
	p.published = append(p.published, pst)
	if p.delivery != "" {
		return p.delivery, nil
	}
	return publish.DeliveryText, nil
}

type memStore struct {
	links     []string
	failSnap  bool
	failWrite bool
}

func (s *memStore) Snapshot(ctx context.Context) (store.Snapshot, error) {
	if s.failSnap {
		return nil, errors.New("disk error")
	}
	snap := make(store.Snapshot)
	for _, l := range s.links {
		snap.Add(l)
	}
	return snap, nil
}

func (s *memStore) Append(ctx context.Context, link string) error {
	if s.failWrite {
		return errors.New("read-only file system")
	}
	s.links = append(s.links, link)
	return nil
}

func (s *memStore) Count(ctx context.Context) (int, error) {
	return len(s.links), nil
}

func (s *memStore) Close() error {
	return nil
}

var noon = time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)

func entry(source, link, title string, age time.Duration) feed.Entry {
	return feed.Entry{
		Link:           link,
		NormalizedLink: feed.NormalizeLink(link),
		Title:          title,
		PublishedAt:    noon.Add(-age),
		SourceName:     source,
	}
}

type harness struct {
	fetcher   *fakeFetcher
	media     *fakeMedia
	publisher *fakePublisher
	store     *memStore
	runner    *Runner
}

func newHarness(sources []feed.Source, now time.Time, maxPosts int) *harness {
	h := &harness{
		fetcher:   &fakeFetcher{entries: map[string][]feed.Entry{}, errs: map[string]error{}},
		media:     &fakeMedia{},
		publisher: &fakePublisher{fail: map[string]error{}},
		store:     &memStore{},
	}

	settings := Settings{
		MaxPosts:        maxPosts,
		ActualityWindow: 48 * time.Hour,
		ActiveFromHour:  7,
		ActiveToHour:    23,
		FetchWorkers:    4,
	}

	h.runner = NewRunner(sources, h.fetcher, fakeExtractor{}, h.media, fakeComposer{}, h.publisher, h.store, settings, fixedClock{now: now})
	return h
}

var twoSources = []feed.Source{
	{Name: "A", URL: "https://a.example.com/rss", AllowMedia: true},
	{Name: "B", URL: "https://b.example.com/rss"},
}

func TestRunNightIsNoop(t *testing.T) {
	h := newHarness(twoSources, time.Date(2024, 5, 2, 3, 0, 0, 0, time.UTC), 1)
	h.fetcher.entries["A"] = []feed.Entry{entry("A", "https://a.example.com/1", "one", time.Hour)}

	result, err := h.runner.Run(context.Background(), "night")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !result.Skipped {
		t.Error("Expected cycle to be skipped")
	}
	if h.fetcher.calls != 0 {
		t.Errorf("Expected zero fetches, got %d", h.fetcher.calls)
	}
	if len(h.publisher.published) != 0 {
		t.Errorf("Expected zero posts, got %d", len(h.publisher.published))
	}
}

func TestRunCapPicksMostRecentAcrossSources(t *testing.T) {
	h := newHarness(twoSources, noon, 1)
	h.fetcher.entries["A"] = []feed.Entry{entry("A", "https://a.example.com/older", "older", 2*time.Hour)}
	h.fetcher.entries["B"] = []feed.Entry{entry("B", "https://b.example.com/newer", "newer", time.Hour)}

	result, err := h.runner.Run(context.Background(), "cap")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Published != 1 || len(h.publisher.published) != 1 {
		t.Fatalf("Expected exactly one post, got %d", len(h.publisher.published))
	}
	if h.publisher.published[0].Title != "newer" {
		t.Errorf("Expected the more recent entry, got %s", h.publisher.published[0].Title)
	}
	if len(h.store.links) != 1 || h.store.links[0] != "https://b.example.com/newer" {
		t.Errorf("Expected only the published link committed, got %v", h.store.links)
	}

	// The other entry stays eligible for the next cycle.
	result, err = h.runner.Run(context.Background(), "cap-2")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Published != 1 || h.publisher.published[1].Title != "older" {
		t.Errorf("Expected the remaining entry in the next cycle, got %+v", h.publisher.published)
	}

	result, _ = h.runner.Run(context.Background(), "cap-3")
	if result.Published != 0 || result.Eligible != 0 {
		t.Errorf("Expected nothing left to publish, got %+v", result)
	}
}

func TestRunCountEqualsMinOfEligibleAndCap(t *testing.T) {
	h := newHarness(twoSources, noon, 3)
	h.fetcher.entries["A"] = []feed.Entry{
		entry("A", "https://a.example.com/1", "a1", 5*time.Hour),
		entry("A", "https://a.example.com/2", "a2", 1*time.Hour),
	}
	h.fetcher.entries["B"] = []feed.Entry{
		entry("B", "https://b.example.com/1", "b1", 3*time.Hour),
		entry("B", "https://b.example.com/2", "b2", 4*time.Hour),
		entry("B", "https://b.example.com/3", "b3", 2*time.Hour),
	}

	result, err := h.runner.Run(context.Background(), "rank")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Eligible != 5 || result.Published != 3 {
		t.Errorf("Expected 5 eligible and 3 published, got %+v", result)
	}

	want := []string{"a2", "b3", "b1"}
	for i, title := range want {
		if h.publisher.published[i].Title != title {
			t.Errorf("Post %d: expected %s, got %s", i, title, h.publisher.published[i].Title)
		}
	}
}

func TestRunTiesKeepDiscoveryOrder(t *testing.T) {
	h := newHarness(twoSources, noon, 2)
	h.fetcher.entries["A"] = []feed.Entry{entry("A", "https://a.example.com/1", "first", time.Hour)}
	h.fetcher.entries["B"] = []feed.Entry{entry("B", "https://b.example.com/1", "second", time.Hour)}

	if _, err := h.runner.Run(context.Background(), "ties"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if h.publisher.published[0].Title != "first" || h.publisher.published[1].Title != "second" {
		t.Errorf("Expected source order for equal timestamps, got %s, %s", h.publisher.published[0].Title, h.publisher.published[1].Title)
	}
}

func TestRunExcludesStaleAndPosted(t *testing.T) {
	h := newHarness(twoSources, noon, 5)
	h.store.links = []string{"https://a.example.com/posted"}
	h.fetcher.entries["A"] = []feed.Entry{
		entry("A", "https://a.example.com/stale", "stale", 49*time.Hour),
		entry("A", "https://A.example.com/posted/", "posted", time.Hour),
		entry("A", "https://a.example.com/edge", "edge", 48*time.Hour),
	}

	result, err := h.runner.Run(context.Background(), "filter")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Fetched != 3 || result.Eligible != 1 {
		t.Errorf("Expected 3 fetched and 1 eligible, got %+v", result)
	}
	if len(h.publisher.published) != 1 || h.publisher.published[0].Title != "edge" {
		t.Errorf("Expected only the entry at the window edge, got %+v", h.publisher.published)
	}
}

func TestRunDuplicateAcrossSources(t *testing.T) {
	h := newHarness(twoSources, noon, 5)
	h.fetcher.entries["A"] = []feed.Entry{entry("A", "https://news.example.com/story", "from A", 2*time.Hour)}
	h.fetcher.entries["B"] = []feed.Entry{entry("B", "https://NEWS.example.com/story/", "from B", time.Hour)}

	result, err := h.runner.Run(context.Background(), "dup")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Published != 1 || h.publisher.published[0].Title != "from A" {
		t.Errorf("Expected one post from the first source, got %+v", h.publisher.published)
	}
	if len(h.store.links) != 1 {
		t.Errorf("Expected one committed link, got %v", h.store.links)
	}
}

func TestRunSourceFailureIsolated(t *testing.T) {
	h := newHarness(twoSources, noon, 5)
	h.fetcher.errs["A"] = errors.New("connection refused")
	h.fetcher.entries["B"] = []feed.Entry{entry("B", "https://b.example.com/1", "b1", time.Hour)}

	result, err := h.runner.Run(context.Background(), "isolated")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.FailedSources != 1 || result.Published != 1 {
		t.Errorf("Expected one failed source and one post, got %+v", result)
	}
}

func TestRunHardPublishFailureNotCommitted(t *testing.T) {
	h := newHarness(twoSources, noon, 5)
	h.fetcher.entries["B"] = []feed.Entry{
		entry("B", "https://b.example.com/bad", "bad", time.Hour),
		entry("B", "https://b.example.com/good", "good", 2*time.Hour),
	}
	h.publisher.fail["https://b.example.com/bad"] = errors.New("fallback failed")

	result, err := h.runner.Run(context.Background(), "hard")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Failed != 1 || result.Published != 1 {
		t.Errorf("Expected one failure and one post, got %+v", result)
	}
	if len(h.store.links) != 1 || h.store.links[0] != "https://b.example.com/good" {
		t.Errorf("Expected only the delivered link committed, got %v", h.store.links)
	}

	delete(h.publisher.fail, "https://b.example.com/bad")
	result, _ = h.runner.Run(context.Background(), "retry")
	if result.Published != 1 {
		t.Errorf("Expected the failed entry to be retried, got %+v", result)
	}
}

func TestRunFallbackDeliveryCommits(t *testing.T) {
	h := newHarness(twoSources, noon, 1)
	h.publisher.delivery = publish.DeliveryFallback
	h.fetcher.entries["A"] = []feed.Entry{entry("A", "https://a.example.com/p", "photo", time.Hour)}

	if _, err := h.runner.Run(context.Background(), "fallback"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(h.store.links) != 1 {
		t.Errorf("Expected fallback delivery to be committed, got %v", h.store.links)
	}
}

func TestRunMediaOnlyWhenAllowed(t *testing.T) {
	h := newHarness(twoSources, noon, 5)
	h.fetcher.entries["A"] = []feed.Entry{entry("A", "https://a.example.com/1", "a", time.Hour)}
	h.fetcher.entries["B"] = []feed.Entry{entry("B", "https://b.example.com/1", "b", 2*time.Hour)}

	if _, err := h.runner.Run(context.Background(), "media"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if h.media.calls != 1 {
		t.Errorf("Expected media resolution only for the allowing source, got %d calls", h.media.calls)
	}
	for _, p := range h.publisher.published {
		if p.SourceName == "B" && p.Media != nil {
			t.Errorf("Expected no media for source B")
		}
		if p.SourceName == "A" && p.Media == nil {
			t.Errorf("Expected media for source A")
		}
	}
}

func TestRunSnapshotFailure(t *testing.T) {
	h := newHarness(twoSources, noon, 1)
	h.store.failSnap = true

	if _, err := h.runner.Run(context.Background(), "broken"); err == nil {
		t.Fatal("Expected error when the store cannot be read")
	}
	if h.fetcher.calls != 0 {
		t.Errorf("Expected no fetches, got %d", h.fetcher.calls)
	}
}

func TestRunCommitFailureStillCountsDelivery(t *testing.T) {
	h := newHarness(twoSources, noon, 5)
	h.store.failWrite = true
	h.fetcher.entries["A"] = []feed.Entry{
		entry("A", "https://a.example.com/1", "one", time.Hour),
		entry("A", "https://a.example.com/1/", "again", time.Hour),
	}

	result, err := h.runner.Run(context.Background(), "commit")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Published != 1 {
		t.Errorf("Expected one post, got %+v", result)
	}
}

func TestLastResult(t *testing.T) {
	h := newHarness(twoSources, noon, 1)

	if _, ok := h.runner.LastResult(); ok {
		t.Error("Expected no result before the first cycle")
	}

	h.runner.Run(context.Background(), "first")

	last, ok := h.runner.LastResult()
	if !ok || last.ID != "first" || last.Sources != 2 {
		t.Errorf("Expected recorded result, got %+v", last)
	}
	if last.FinishedAt.IsZero() {
		t.Error("Expected finish time")
	}
}

func TestInActiveHours(t *testing.T) {
	tests := []struct {
		hour, from, to int
		expected       bool
	}{
		{6, 7, 23, false},
		{7, 7, 23, true},
		{23, 7, 23, true},
		{0, 7, 23, false},
		{3, 7, 23, false},
		{23, 22, 2, true},
		{1, 22, 2, true},
		{2, 22, 2, true},
		{12, 22, 2, false},
		{5, 0, 23, true},
	}

	for _, tt := range tests {
		if got := InActiveHours(tt.hour, tt.from, tt.to); got != tt.expected {
			t.Errorf("InActiveHours(%d, %d, %d): expected %v, got %v", tt.hour, tt.from, tt.to, tt.expected, got)
		}
	}
}

func TestRunDryRunLeavesDedupLogUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posted.txt")
	fileStore, err := store.NewFileStore(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	sources := []feed.Source{{Name: "B", URL: "https://b.example.com/rss"}}
	fetcher := &fakeFetcher{entries: map[string][]feed.Entry{}, errs: map[string]error{}}
	fetcher.entries["B"] = []feed.Entry{entry("B", "https://b.example.com/1", "one", time.Hour)}

	publisher := publish.NewPublisher(publish.NewLogMessenger(), nil, time.Second, time.Second)
	settings := Settings{MaxPosts: 1, ActualityWindow: 48 * time.Hour, ActiveFromHour: 7, ActiveToHour: 23, FetchWorkers: 1}
	runner := NewRunner(sources, fetcher, fakeExtractor{}, &fakeMedia{}, fakeComposer{}, publisher, store.NewReadOnlyStore(fileStore), settings, fixedClock{now: noon})

	for _, id := range []string{"dry-1", "dry-2"} {
		result, err := runner.Run(context.Background(), id)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if result.Published != 1 {
			t.Errorf("Expected the entry to be published in %s, got %d", id, result.Published)
		}
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		data, _ := os.ReadFile(path)
		t.Errorf("Expected no dedup log after dry run, got %q", string(data))
	}
}
