// Package worker implements the crawl task loop: pull a task from the
// frontier, fetch and extract it, admit its links, record the page, and pause.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawl/internal/crawler"
	"github.com/JakeFAU/sitecrawl/internal/extract"
	"github.com/JakeFAU/sitecrawl/internal/frontier"
	"github.com/JakeFAU/sitecrawl/internal/metrics"
	"github.com/JakeFAU/sitecrawl/internal/progress"
	"github.com/JakeFAU/sitecrawl/internal/urlnorm"
)

// DefaultFetchTimeout bounds a single fetch when Config leaves it unset.
const DefaultFetchTimeout = 10 * time.Second

// kindExtractFailed labels extraction failures in metrics and events.
const kindExtractFailed = "extract_failed"

// Frontier is the slice of frontier.Frontier a worker uses.
type Frontier interface {
	Next(ctx context.Context) (crawler.Task, error)
	Admit(url string) bool
	MarkDone(url string)
	CapReached() bool
}

// Recorder commits page results.
type Recorder interface {
	Record(result crawler.PageResult) bool
}

// Normalizer canonicalizes and scopes discovered links.
type Normalizer interface {
	Normalize(raw, pageURL string) (string, bool)
}

// Config controls a single worker.
type Config struct {
	ID           int
	SessionID    string
	Delay        time.Duration
	FetchTimeout time.Duration
	// BaseLanguage is the language code derived from the seed's domain.
	BaseLanguage string
}

// Deps are the collaborators shared by every worker of a session.
type Deps struct {
	Frontier   Frontier
	Results    Recorder
	Normalizer Normalizer
	Fetcher    crawler.Fetcher
	Extractor  crawler.Extractor
	Hasher     crawler.Hasher
	Clock      crawler.Clock
	// Limiter is optional.
	Limiter crawler.Limiter
	// Events is optional.
	Events progress.Emitter
}

// Worker runs one task loop.
type Worker struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger
}

// New constructs a Worker.
func New(cfg Config, deps Deps, logger *zap.Logger) *Worker {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.BaseLanguage == "" {
		cfg.BaseLanguage = urlnorm.DefaultLanguage
	}
	if deps.Events == nil {
		deps.Events = progress.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With(zap.Int("worker", cfg.ID)),
	}
}

// Run processes tasks until the frontier is exhausted or ctx is canceled.
// Both are normal exits and return nil.
func (w *Worker) Run(ctx context.Context) error {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	for {
		task, err := w.deps.Frontier.Next(ctx)
		if err != nil {
			if errors.Is(err, frontier.ErrExhausted) || ctx.Err() != nil {
				w.logger.Debug("worker retiring", zap.Error(err))
				return nil
			}
			return fmt.Errorf("worker %d next task: %w", w.cfg.ID, err)
		}

		w.process(ctx, task)
		w.deps.Frontier.MarkDone(task.URL)

		if err := w.deps.Clock.Sleep(ctx, w.cfg.Delay); err != nil {
			w.logger.Debug("politeness sleep interrupted", zap.Error(err))
			return nil
		}
	}
}

func (w *Worker) process(ctx context.Context, task crawler.Task) {
	if w.deps.Limiter != nil {
		if err := w.deps.Limiter.Wait(ctx, task.URL); err != nil {
			return
		}
	}

	resp, err := w.fetch(ctx, task.URL)
	if err != nil {
		if ctx.Err() != nil {
			// Session canceled; abandoned fetches are not failures.
			return
		}
		fe := crawler.ClassifyFetchError(task.URL, err)
		w.fail(task.URL, string(fe.Kind), fe)
		return
	}

	page, err := w.deps.Extractor.Extract(resp.Body)
	if err != nil {
		w.fail(task.URL, kindExtractFailed, err)
		return
	}

	base := resp.URL
	if base == "" {
		base = task.URL
	}
	links := w.admitLinks(page.Links, base)

	result := crawler.PageResult{
		URL:          task.URL,
		WordCount:    extract.CountWords(page.Text),
		Text:         page.Text,
		Title:        page.Title,
		FetchedAt:    w.deps.Clock.Now(),
		Category:     urlnorm.Category(task.URL),
		Language:     urlnorm.Language(task.URL, w.cfg.BaseLanguage),
		Links:        links,
		ContentHash:  w.hash(page.Text),
		StatusCode:   resp.StatusCode,
		UsedHeadless: resp.UsedHeadless,
	}
	if !w.deps.Results.Record(result) {
		return
	}

	metrics.ObservePage(task.URL, result.WordCount)
	w.deps.Events.Emit(progress.Event{
		SessionID:   w.cfg.SessionID,
		TS:          result.FetchedAt,
		Stage:       progress.StageFetchDone,
		Site:        metrics.SanitizeSite(task.URL),
		URL:         task.URL,
		Bytes:       int64(len(resp.Body)),
		Words:       int64(result.WordCount),
		StatusClass: progress.ClassifyStatus(resp.StatusCode),
		Dur:         resp.Duration,
	})
	w.logger.Debug("page recorded",
		zap.String("url", task.URL),
		zap.Int("status", resp.StatusCode),
		zap.Int("words", result.WordCount),
		zap.Int("links", len(links)),
	)
}

func (w *Worker) fetch(ctx context.Context, url string) (crawler.FetchResponse, error) {
	resp, err := w.deps.Fetcher.Fetch(ctx, crawler.FetchRequest{
		SessionID: w.cfg.SessionID,
		URL:       url,
		Timeout:   w.cfg.FetchTimeout,
	})
	if err != nil {
		return crawler.FetchResponse{}, fmt.Errorf("fetch %s: %w", url, err)
	}
	return resp, nil
}

// admitLinks canonicalizes every in-scope link on the page and offers each to
// the frontier until the page cap closes admission. The returned slice holds
// the page's distinct in-scope links in document order.
//
// pageURL is the URL after redirects, not the task URL, so relative links on a
// redirected page resolve the way a browser would resolve them.
func (w *Worker) admitLinks(raw []string, pageURL string) []string {
	seen := make(map[string]struct{}, len(raw))
	links := make([]string, 0, len(raw))
	capped := w.deps.Frontier.CapReached()
	for _, href := range raw {
		link, ok := w.deps.Normalizer.Normalize(href, pageURL)
		if !ok {
			continue
		}
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}
		links = append(links, link)
		if capped {
			continue
		}
		w.deps.Frontier.Admit(link)
		capped = w.deps.Frontier.CapReached()
	}
	return links
}

// hash digests the visible text so markup-only changes keep the same hash.
func (w *Worker) hash(text string) string {
	if w.deps.Hasher == nil {
		return ""
	}
	sum, err := w.deps.Hasher.Hash([]byte(text))
	if err != nil {
		w.logger.Debug("content hash failed", zap.Error(err))
		return ""
	}
	return sum
}

func (w *Worker) fail(url, kind string, err error) {
	metrics.ObserveFetchFailure(kind)
	w.deps.Events.Emit(progress.Event{
		SessionID: w.cfg.SessionID,
		TS:        w.deps.Clock.Now(),
		Stage:     progress.StageFetchFailed,
		Site:      metrics.SanitizeSite(url),
		URL:       url,
		Kind:      kind,
		Note:      err.Error(),
	})
	w.logger.Warn("task dropped",
		zap.String("url", url),
		zap.String("kind", kind),
		zap.Error(err),
	)
}
