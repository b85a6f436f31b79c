// Package session runs one crawl from a seed URL to a sealed Summary.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawl/internal/crawler"
	"github.com/JakeFAU/sitecrawl/internal/dispatcher"
	"github.com/JakeFAU/sitecrawl/internal/frontier"
	"github.com/JakeFAU/sitecrawl/internal/metrics"
	"github.com/JakeFAU/sitecrawl/internal/progress"
	"github.com/JakeFAU/sitecrawl/internal/results"
	"github.com/JakeFAU/sitecrawl/internal/urlnorm"
	"github.com/JakeFAU/sitecrawl/internal/worker"
)

// ErrSessionUsed is returned when Run is called more than once.
var ErrSessionUsed = errors.New("session already run")

// FetcherSelector picks the fetcher for the whole session.
type FetcherSelector interface {
	Choose(ctx context.Context, seed string) crawler.Fetcher
}

// Options configures a Session. Fetcher or Selector must be set; Fetcher wins
// when both are.
type Options struct {
	SeedURL      string
	Budget       crawler.Budget
	FetchTimeout time.Duration
	IdlePoll     time.Duration

	Fetcher   crawler.Fetcher
	Selector  FetcherSelector
	Extractor crawler.Extractor
	Hasher    crawler.Hasher
	Clock     crawler.Clock
	IDs       crawler.IDGenerator
	Limiter   crawler.Limiter
	Events    progress.Emitter
	// Status receives lifecycle records at start and finish only.
	Status crawler.StatusStore
}

// Snapshot is a live view of a session for status endpoints.
type Snapshot struct {
	ID        string         `json:"id"`
	BaseURL   string         `json:"base_url"`
	State     crawler.State  `json:"state"`
	Canceled  bool           `json:"canceled"`
	Sealed    bool           `json:"sealed"`
	Pages     int            `json:"pages"`
	Words     int            `json:"words"`
	Frontier  frontier.Stats `json:"frontier"`
	StartedAt time.Time      `json:"started_at,omitempty"`
}

// Session is the aggregate root of one crawl. It can be run once.
type Session struct {
	id       string
	seed     string
	baseLang string
	budget   crawler.Budget
	opts     Options

	normalizer *urlnorm.Normalizer
	frontier   *frontier.Frontier
	results    *results.Accumulator
	term       *dispatcher.Termination
	logger     *zap.Logger

	used    atomic.Bool
	mu      sync.Mutex
	started time.Time
}

// New validates the budget and seed and prepares a session.
func New(opts Options, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	budget := opts.Budget.WithDefaults()
	if err := budget.Validate(); err != nil {
		return nil, fmt.Errorf("session budget: %w", err)
	}
	seed, err := urlnorm.Canonical(opts.SeedURL)
	if err != nil {
		return nil, fmt.Errorf("session seed: %w", err)
	}
	normalizer, err := urlnorm.New(seed)
	if err != nil {
		return nil, fmt.Errorf("session seed: %w", err)
	}
	if opts.Fetcher == nil && opts.Selector == nil {
		return nil, errors.New("session requires a fetcher or selector")
	}
	if opts.Extractor == nil {
		return nil, errors.New("session requires an extractor")
	}
	if opts.Clock == nil {
		return nil, errors.New("session requires a clock")
	}
	if opts.Events == nil {
		opts.Events = progress.Discard
	}

	id := ""
	if opts.IDs != nil {
		if id, err = opts.IDs.NewID(); err != nil {
			return nil, fmt.Errorf("session id: %w", err)
		}
	}
	if id == "" {
		id = fmt.Sprintf("session-%d", time.Now().UnixNano())
	}
	logger = logger.Named("session").With(zap.String("session_id", id))

	return &Session{
		id:         id,
		seed:       seed,
		baseLang:   urlnorm.BaseLanguage(normalizer.Authority()),
		budget:     budget,
		opts:       opts,
		normalizer: normalizer,
		frontier:   frontier.New(frontier.Config{MaxPages: budget.MaxPages, IdlePoll: opts.IdlePoll}),
		results:    results.New(),
		term:       dispatcher.NewTermination(logger),
		logger:     logger,
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Seed returns the canonical seed URL.
func (s *Session) Seed() string { return s.seed }

// Run crawls until the frontier drains, the cap is reached and drained, or ctx
// is canceled. Cancellation is not an error: the partial Summary is returned
// with Canceled set.
func (s *Session) Run(ctx context.Context) (crawler.Summary, error) {
	if !s.used.CompareAndSwap(false, true) {
		return crawler.Summary{}, ErrSessionUsed
	}
	started := s.opts.Clock.Now()
	s.mu.Lock()
	s.started = started
	s.mu.Unlock()

	s.putStatus(ctx, crawler.SessionRecord{
		ID:         s.id,
		BaseURL:    s.seed,
		Status:     crawler.SessionStatusRunning,
		Started:    started,
		Parameters: s.budget,
	})
	s.opts.Events.Emit(progress.Event{SessionID: s.id, TS: started, Stage: progress.StageSessionStart, URL: s.seed})
	s.logger.Info("session started",
		zap.String("url", s.seed),
		zap.Int("max_pages", s.budget.MaxPages),
		zap.Int("workers", s.budget.Workers),
		zap.Duration("delay", s.budget.Delay),
	)

	fetcher := s.opts.Fetcher
	if fetcher == nil {
		fetcher = s.opts.Selector.Choose(ctx, s.seed)
	}

	s.frontier.Seed(s.seed)
	d := dispatcher.New(dispatcher.Config{
		Workers:      s.budget.Workers,
		SessionID:    s.id,
		Delay:        s.budget.Delay,
		FetchTimeout: s.opts.FetchTimeout,
		BaseLanguage: s.baseLang,
	}, s.frontier, worker.Deps{
		Results:    s.results,
		Normalizer: s.normalizer,
		Fetcher:    fetcher,
		Extractor:  s.opts.Extractor,
		Hasher:     s.opts.Hasher,
		Clock:      s.opts.Clock,
		Limiter:    s.opts.Limiter,
		Events:     s.opts.Events,
	}, s.term, s.logger.Named("dispatcher"))
	state := d.Run(ctx)
	s.results.Seal()

	summary := s.summary(started, s.opts.Clock.Now(), state)
	s.finish(ctx, summary)
	return summary, nil
}

func (s *Session) summary(started, finished time.Time, state crawler.State) crawler.Summary {
	return crawler.Summary{
		SessionID:    s.id,
		BaseURL:      s.seed,
		BaseDomain:   s.normalizer.Authority(),
		BaseLanguage: s.baseLang,
		Budget:       s.budget,
		StartedAt:    started,
		FinishedAt:   finished,
		State:        state,
		Canceled:     s.term.Canceled(),
		TotalPages:   s.results.Len(),
		TotalWords:   s.results.TotalWords(),
		Pages:        s.results.Snapshot(),
	}
}

func (s *Session) finish(ctx context.Context, summary crawler.Summary) {
	stage := progress.StageSessionDone
	status := crawler.SessionStatusSucceeded
	outcome := "done"
	errText := ""
	switch {
	case summary.Canceled:
		stage = progress.StageSessionCanceled
		status = crawler.SessionStatusCanceled
		outcome = "canceled"
	case summary.TotalPages == 0:
		status = crawler.SessionStatusFailed
		outcome = "empty"
		errText = "no pages were fetched"
	}
	finished := summary.FinishedAt
	s.putStatus(ctx, crawler.SessionRecord{
		ID:         s.id,
		BaseURL:    s.seed,
		Status:     status,
		Started:    summary.StartedAt,
		Finished:   &finished,
		Pages:      summary.TotalPages,
		Words:      summary.TotalWords,
		ErrorText:  errText,
		Parameters: s.budget,
	})
	s.opts.Events.Emit(progress.Event{
		SessionID: s.id,
		TS:        finished,
		Stage:     stage,
		URL:       s.seed,
		Pages:     int64(summary.TotalPages),
		Words:     int64(summary.TotalWords),
		Dur:       finished.Sub(summary.StartedAt),
	})
	metrics.ObserveSession(outcome)
	s.logger.Info("session finished",
		zap.String("outcome", outcome),
		zap.Int("pages", summary.TotalPages),
		zap.Int("words", summary.TotalWords),
		zap.Duration("elapsed", finished.Sub(summary.StartedAt)),
	)
}

// putStatus writes a lifecycle record. Failures are logged; status is
// advisory and never fails the crawl. The write survives cancellation of ctx
// so a canceled session still records its final state.
func (s *Session) putStatus(ctx context.Context, record crawler.SessionRecord) {
	if s.opts.Status == nil {
		return
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.opts.Status.PutSession(writeCtx, record); err != nil {
		s.logger.Warn("status store write failed", zap.String("status", string(record.Status)), zap.Error(err))
	}
}

// Snapshot reports live counts. It is safe to call while Run is in progress.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	return Snapshot{
		ID:        s.id,
		BaseURL:   s.seed,
		State:     s.term.State(),
		Canceled:  s.term.Canceled(),
		Sealed:    s.results.Sealed(),
		Pages:     s.results.Len(),
		Words:     s.results.TotalWords(),
		Frontier:  s.frontier.Stats(),
		StartedAt: started,
	}
}
