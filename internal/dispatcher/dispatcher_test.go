package dispatcher

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawl/internal/crawler"
	"github.com/JakeFAU/sitecrawl/internal/extract"
	"github.com/JakeFAU/sitecrawl/internal/frontier"
	"github.com/JakeFAU/sitecrawl/internal/results"
	"github.com/JakeFAU/sitecrawl/internal/urlnorm"
	"github.com/JakeFAU/sitecrawl/internal/worker"
)

const seed = "https://example.com/"

func linkPage(n int) string {
	var b strings.Builder
	b.WriteString("<p>seed page</p>")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, `<a href="/p%d">page %d</a>`, i, i)
	}
	return b.String()
}

func newDeps(t *testing.T, fetcher crawler.Fetcher, acc *results.Accumulator) worker.Deps {
	t.Helper()
	norm, err := urlnorm.New(seed)
	require.NoError(t, err)
	return worker.Deps{
		Results:    acc,
		Normalizer: norm,
		Fetcher:    fetcher,
		Extractor:  extract.New(),
		Clock:      instantClock{},
	}
}

func TestDispatcherCapHoldsForAnyWorkerCount(t *testing.T) {
	t.Parallel()

	for _, workers := range []int{1, 2, 5, 10} {
		workers := workers
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			t.Parallel()
			fetcher := &pageFetcher{pages: map[string]string{seed: linkPage(5)}, fallback: "<p>leaf</p>"}
			acc := results.New()
			f := frontier.New(frontier.Config{MaxPages: 3, IdlePoll: 5 * time.Millisecond})
			f.Seed(seed)

			d := New(Config{Workers: workers, SessionID: "s"}, f, newDeps(t, fetcher, acc), nil, zap.NewNop())
			state := d.Run(context.Background())

			require.Equal(t, crawler.StateDone, state)
			require.False(t, d.Termination().Canceled())
			require.Equal(t, 3, acc.Len())
			require.Equal(t, 3, f.Stats().Seen)
			require.Equal(t, int32(3), fetcher.calls.Load())
		})
	}
}

func TestDispatcherUnboundedCrawlsEverything(t *testing.T) {
	t.Parallel()

	fetcher := &pageFetcher{pages: map[string]string{seed: linkPage(20)}, fallback: `<a href="/">home</a>`}
	acc := results.New()
	f := frontier.New(frontier.Config{IdlePoll: 5 * time.Millisecond})
	f.Seed(seed)

	d := New(Config{Workers: 4}, f, newDeps(t, fetcher, acc), nil, zap.NewNop())
	require.Equal(t, crawler.StateDone, d.Run(context.Background()))
	require.Equal(t, 21, acc.Len())
}

func TestDispatcherRefusedSeed(t *testing.T) {
	t.Parallel()

	fetcher := &pageFetcher{refuse: true}
	acc := results.New()
	f := frontier.New(frontier.Config{IdlePoll: 5 * time.Millisecond})
	f.Seed(seed)

	d := New(Config{Workers: 3}, f, newDeps(t, fetcher, acc), nil, zap.NewNop())
	require.Equal(t, crawler.StateDone, d.Run(context.Background()))
	require.Zero(t, acc.Len())
}

func TestDispatcherCancelKeepsRecordedPrefix(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	fetcher := &pageFetcher{
		pages:      map[string]string{seed: linkPage(9)},
		fallback:   "<p>leaf</p>",
		blockAfter: 2,
		blocked:    release,
	}
	acc := results.New()
	f := frontier.New(frontier.Config{IdlePoll: 5 * time.Millisecond})
	f.Seed(seed)

	d := New(Config{Workers: 1}, f, newDeps(t, fetcher, acc), nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan crawler.State, 1)
	go func() { done <- d.Run(ctx) }()

	<-release
	cancel()
	select {
	case state := <-done:
		require.Equal(t, crawler.StateDone, state)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop after cancel")
	}
	require.True(t, d.Termination().Canceled())
	require.Equal(t, 2, acc.Len())
}

func TestTerminationTransitions(t *testing.T) {
	t.Parallel()

	term := NewTermination(nil)
	require.Equal(t, crawler.StateRunning, term.State())

	require.True(t, term.Drain("cap"))
	require.False(t, term.Drain("again"))
	require.Equal(t, crawler.StateDraining, term.State())
	require.True(t, term.Finish())
	require.False(t, term.Cancel())
	require.False(t, term.Canceled())
	select {
	case <-term.Done():
	default:
		t.Fatal("done channel not closed")
	}

	term = NewTermination(nil)
	require.True(t, term.Cancel())
	require.True(t, term.Canceled())
	require.Equal(t, crawler.StateDone, term.State())
	require.False(t, term.Drain("late"))
	require.False(t, term.Finish())
}

type pageFetcher struct {
	mu         sync.Mutex
	pages      map[string]string
	fallback   string
	refuse     bool
	blockAfter int32
	blocked    chan struct{}
	calls      atomic.Int32
}

func (f *pageFetcher) Fetch(ctx context.Context, req crawler.FetchRequest) (crawler.FetchResponse, error) {
	n := f.calls.Add(1)
	if f.refuse {
		return crawler.FetchResponse{}, &crawler.FetchError{Kind: crawler.KindConnectionFailed, URL: req.URL}
	}
	if f.blockAfter > 0 && n > f.blockAfter {
		if n == f.blockAfter+1 {
			close(f.blocked)
		}
		<-ctx.Done()
		return crawler.FetchResponse{}, ctx.Err()
	}
	f.mu.Lock()
	body, ok := f.pages[req.URL]
	f.mu.Unlock()
	if !ok {
		body = f.fallback
	}
	return crawler.FetchResponse{
		URL:         req.URL,
		StatusCode:  http.StatusOK,
		ContentType: "text/html",
		Body:        []byte(body),
	}, nil
}

type instantClock struct{}

func (instantClock) Now() time.Time { return time.Unix(0, 0).UTC() }

func (instantClock) Sleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }
