// Package dispatcher fans a session out to its worker pool and drives the
// termination state machine.
package dispatcher

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/sitecrawl/internal/crawler"
	"github.com/JakeFAU/sitecrawl/internal/frontier"
	"github.com/JakeFAU/sitecrawl/internal/metrics"
	"github.com/JakeFAU/sitecrawl/internal/worker"
)

const gaugeInterval = 500 * time.Millisecond

// Config controls the pool.
type Config struct {
	Workers      int
	SessionID    string
	Delay        time.Duration
	FetchTimeout time.Duration
	BaseLanguage string
}

// Dispatcher runs N workers over one frontier.
type Dispatcher struct {
	cfg      Config
	frontier *frontier.Frontier
	deps     worker.Deps
	term     *Termination
	logger   *zap.Logger
}

// New creates a Dispatcher. deps.Frontier is replaced by f. A nil term gets a
// fresh state machine.
func New(cfg Config, f *frontier.Frontier, deps worker.Deps, term *Termination, logger *zap.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = crawler.DefaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if term == nil {
		term = NewTermination(logger)
	}
	deps.Frontier = f
	return &Dispatcher{
		cfg:      cfg,
		frontier: f,
		deps:     deps,
		term:     term,
		logger:   logger,
	}
}

// Termination exposes the state machine.
func (d *Dispatcher) Termination() *Termination {
	return d.term
}

// Run starts the workers and the termination watcher and blocks until every
// worker has joined. It returns the final state, which is always DONE.
func (d *Dispatcher) Run(ctx context.Context) crawler.State {
	stop := make(chan struct{})
	watched := make(chan struct{})
	go func() {
		defer close(watched)
		d.watch(ctx, stop)
	}()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < d.cfg.Workers; i++ {
		w := worker.New(worker.Config{
			ID:           i,
			SessionID:    d.cfg.SessionID,
			Delay:        d.cfg.Delay,
			FetchTimeout: d.cfg.FetchTimeout,
			BaseLanguage: d.cfg.BaseLanguage,
		}, d.deps, d.logger)
		g.Go(func() error {
			return w.Run(gctx)
		})
	}
	d.logger.Info("workers started", zap.Int("workers", d.cfg.Workers))

	if err := g.Wait(); err != nil {
		d.logger.Error("worker exited with error", zap.Error(err))
	}
	close(stop)
	<-watched
	d.publishGauges()

	if ctx.Err() != nil {
		d.term.Cancel()
	} else {
		d.term.Drain("workers retired")
		d.term.Finish()
	}
	return d.term.State()
}

// watch observes the frontier's cap and quiescence signals and the session
// context. On cancellation it closes the frontier so idle workers wake.
func (d *Dispatcher) watch(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(gaugeInterval)
	defer ticker.Stop()

	capSignal := d.frontier.CapSignal()
	finished := d.frontier.Finished()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			d.term.Cancel()
			d.frontier.Close()
			return
		case <-capSignal:
			d.term.Drain("page cap reached")
			capSignal = nil
		case <-finished:
			d.term.Drain("frontier quiescent")
			finished = nil
		case <-ticker.C:
			d.publishGauges()
		}
	}
}

func (d *Dispatcher) publishGauges() {
	stats := d.frontier.Stats()
	metrics.SetFrontier(stats.Seen, stats.Queued, stats.InFlight)
}
