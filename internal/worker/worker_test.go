package worker

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawl/internal/crawler"
	"github.com/JakeFAU/sitecrawl/internal/extract"
	"github.com/JakeFAU/sitecrawl/internal/frontier"
	"github.com/JakeFAU/sitecrawl/internal/progress"
	"github.com/JakeFAU/sitecrawl/internal/results"
	"github.com/JakeFAU/sitecrawl/internal/urlnorm"
)

const seed = "https://example.com/"

type harness struct {
	frontier *frontier.Frontier
	results  *results.Accumulator
	fetcher  *fakeFetcher
	clock    *fakeClock
	events   *recordingEmitter
	worker   *Worker
}

func newHarness(t *testing.T, maxPages int, pages map[string]string) *harness {
	t.Helper()
	norm, err := urlnorm.New(seed)
	require.NoError(t, err)

	h := &harness{
		frontier: frontier.New(frontier.Config{MaxPages: maxPages, IdlePoll: 10 * time.Millisecond}),
		results:  results.New(),
		fetcher:  newFakeFetcher(pages),
		clock:    &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		events:   &recordingEmitter{},
	}
	h.worker = New(Config{ID: 1, SessionID: "s1", Delay: 250 * time.Millisecond, BaseLanguage: "en"}, Deps{
		Frontier:   h.frontier,
		Results:    h.results,
		Normalizer: norm,
		Fetcher:    h.fetcher,
		Extractor:  extract.New(),
		Clock:      h.clock,
		Events:     h.events,
	}, zap.NewNop())
	h.frontier.Seed(seed)
	return h
}

func TestWorkerCrawlsReachablePages(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 0, map[string]string{
		seed:                          `<title>Home</title><p>hello world</p><a href="/a">a</a><a href="/b/">b</a><a href="https://other.org/">x</a>`,
		"https://example.com/a":       `<p>one two three</p><a href="/">home</a><a href="/b">b</a>`,
		"https://example.com/b":       `<p>four</p><a href="report.pdf">pdf</a>`,
		"https://example.com/unknown": `<p>never linked</p>`,
	})

	require.NoError(t, h.worker.Run(context.Background()))

	require.Equal(t, 3, h.results.Len())
	sum := 0
	for _, page := range h.results.Snapshot() {
		sum += page.WordCount
	}
	require.Equal(t, sum, h.results.TotalWords())
	home, ok := h.results.Get(seed)
	require.True(t, ok)
	require.Equal(t, 5, home.WordCount)
	require.Equal(t, "Home", home.Title)
	require.Equal(t, "home", home.Category)
	require.Equal(t, "English", home.Language)
	require.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, home.Links)
	require.Equal(t, 3, h.fetcher.Calls())
	require.Equal(t, []time.Duration{250 * time.Millisecond, 250 * time.Millisecond, 250 * time.Millisecond}, h.clock.Sleeps())
	require.Equal(t, frontier.Stats{Seen: 3, Done: 3}, h.frontier.Stats())
	require.Len(t, h.events.ByStage(progress.StageFetchDone), 3)
}

func TestWorkerDropsFailedTasks(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 0, map[string]string{
		seed:                     `<a href="/missing">m</a><a href="/ok">ok</a>`,
		"https://example.com/ok": `<p>fine page</p>`,
	})
	h.fetcher.errs["https://example.com/missing"] = crawler.NewStatusError("https://example.com/missing", http.StatusNotFound)

	require.NoError(t, h.worker.Run(context.Background()))

	require.Equal(t, 2, h.results.Len())
	_, ok := h.results.Get("https://example.com/missing")
	require.False(t, ok)
	failed := h.events.ByStage(progress.StageFetchFailed)
	require.Len(t, failed, 1)
	require.Equal(t, string(crawler.KindNonSuccessStatus), failed[0].Kind)
	require.Equal(t, frontier.Stats{Seen: 3, Done: 3}, h.frontier.Stats())
}

func TestWorkerClassifiesRawErrors(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 0, nil)
	h.fetcher.errs[seed] = context.DeadlineExceeded

	require.NoError(t, h.worker.Run(context.Background()))
	require.Zero(t, h.results.Len())
	failed := h.events.ByStage(progress.StageFetchFailed)
	require.Len(t, failed, 1)
	require.Equal(t, string(crawler.KindTimeout), failed[0].Kind)
}

func TestWorkerStopsAdmittingAtCap(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 3, map[string]string{
		seed:                    `<a href="/1">1</a><a href="/2">2</a><a href="/3">3</a><a href="/4">4</a><a href="/5">5</a>`,
		"https://example.com/1": `<a href="/6">6</a>`,
		"https://example.com/2": `<p>two</p>`,
	})

	require.NoError(t, h.worker.Run(context.Background()))

	require.Equal(t, 3, h.results.Len())
	require.Equal(t, 3, h.frontier.Stats().Seen)
	_, ok := h.results.Get("https://example.com/3")
	require.False(t, ok)
	home, _ := h.results.Get(seed)
	require.Len(t, home.Links, 5)
}

func TestWorkerResolvesAgainstFinalURL(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 0, map[string]string{
		seed:                             `<a href="/docs">docs</a>`,
		"https://example.com/docs":       `<a href="intro">intro</a>`,
		"https://example.com/docs/intro": `<p>intro text</p>`,
	})
	h.fetcher.finalURL["https://example.com/docs"] = "https://example.com/docs/"

	require.NoError(t, h.worker.Run(context.Background()))

	_, ok := h.results.Get("https://example.com/docs/intro")
	require.True(t, ok)
}

func TestWorkerCancelInterruptsSleep(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 0, map[string]string{
		seed:                    `<a href="/a">a</a>`,
		"https://example.com/a": `<p>a</p>`,
	})
	h.clock.block = true

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.worker.Run(ctx) }()

	require.Eventually(t, func() bool { return h.results.Len() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
	require.Equal(t, 1, h.results.Len())
}

func TestWorkerCanceledFetchIsNotAFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	h.fetcher.hook = func(context.Context) { cancel() }
	h.fetcher.errs[seed] = context.Canceled

	require.NoError(t, h.worker.Run(ctx))
	require.Empty(t, h.events.ByStage(progress.StageFetchFailed))
}

func TestWorkerLeavesDeadlineToFetcher(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 0, map[string]string{seed: `<p>x</p>`})
	var hasDeadline bool
	h.fetcher.hook = func(ctx context.Context) { _, hasDeadline = ctx.Deadline() }

	require.NoError(t, h.worker.Run(context.Background()))
	require.False(t, hasDeadline)
	require.Equal(t, []time.Duration{DefaultFetchTimeout}, h.fetcher.timeouts)
}

func TestWorkerHonorsLimiter(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 0, map[string]string{seed: `<p>x</p>`})
	limiter := &countingLimiter{}
	h.worker.deps.Limiter = limiter

	require.NoError(t, h.worker.Run(context.Background()))
	require.Equal(t, 1, limiter.calls)

	h2 := newHarness(t, 0, map[string]string{seed: `<p>x</p>`})
	h2.worker.deps.Limiter = &countingLimiter{err: errors.New("closed")}
	require.NoError(t, h2.worker.Run(context.Background()))
	require.Zero(t, h2.results.Len())
	require.Zero(t, h2.fetcher.Calls())
}

type fakeFetcher struct {
	mu       sync.Mutex
	pages    map[string]string
	errs     map[string]error
	finalURL map[string]string
	hook     func(context.Context)
	calls    int
	timeouts []time.Duration
}

func newFakeFetcher(pages map[string]string) *fakeFetcher {
	if pages == nil {
		pages = map[string]string{}
	}
	return &fakeFetcher{pages: pages, errs: map[string]error{}, finalURL: map[string]string{}}
}

func (f *fakeFetcher) Fetch(ctx context.Context, req crawler.FetchRequest) (crawler.FetchResponse, error) {
	f.mu.Lock()
	f.calls++
	f.timeouts = append(f.timeouts, req.Timeout)
	hook := f.hook
	err := f.errs[req.URL]
	body, ok := f.pages[req.URL]
	final := f.finalURL[req.URL]
	f.mu.Unlock()

	if hook != nil {
		hook(ctx)
	}
	if err != nil {
		return crawler.FetchResponse{}, err
	}
	if !ok {
		return crawler.FetchResponse{}, crawler.NewStatusError(req.URL, http.StatusNotFound)
	}
	if final == "" {
		final = req.URL
	}
	return crawler.FetchResponse{
		URL:         final,
		StatusCode:  http.StatusOK,
		ContentType: "text/html",
		Body:        []byte(body),
	}, nil
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
	block  bool
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	block := c.block
	c.mu.Unlock()
	if block {
		<-ctx.Done()
	}
	return ctx.Err()
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recordingEmitter) Emit(evt progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingEmitter) ByStage(stage progress.Stage) []progress.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []progress.Event
	for _, evt := range r.events {
		if evt.Stage == stage {
			out = append(out, evt)
		}
	}
	return out
}

type countingLimiter struct {
	calls int
	err   error
}

func (l *countingLimiter) Wait(context.Context, string) error {
	l.calls++
	return l.err
}
