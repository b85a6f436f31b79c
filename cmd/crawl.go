package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/JakeFAU/sitecrawl/internal/api"
	"github.com/JakeFAU/sitecrawl/internal/clock/system"
	"github.com/JakeFAU/sitecrawl/internal/config"
	"github.com/JakeFAU/sitecrawl/internal/crawler"
	"github.com/JakeFAU/sitecrawl/internal/extract"
	collyfetcher "github.com/JakeFAU/sitecrawl/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/sitecrawl/internal/fetcher/headless"
	"github.com/JakeFAU/sitecrawl/internal/hash/sha256"
	"github.com/JakeFAU/sitecrawl/internal/headless/detector"
	"github.com/JakeFAU/sitecrawl/internal/id/uuid"
	"github.com/JakeFAU/sitecrawl/internal/policy/ratelimit"
	"github.com/JakeFAU/sitecrawl/internal/progress"
	"github.com/JakeFAU/sitecrawl/internal/progress/sinks"
	"github.com/JakeFAU/sitecrawl/internal/session"
)

// newCrawlCmd creates the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <url> [max_pages] [delay] [workers]",
		Short: "Crawl one site and write word-count reports",
		Long: `Crawls every same-host page reachable from <url> and writes CSV, text,
and markdown reports to the report directory.

max_pages caps distinct URLs; 0, unlimited, all, or none mean no cap.
delay is the pause each worker takes after a page, in seconds or as a
duration such as 250ms. Positional arguments override flags and config.

Ctrl-C stops the crawl and still writes the partial results.`,
		Args: cobra.RangeArgs(1, 4),
		RunE: runCrawl,
	}
	f := cmd.Flags()
	f.Int("max-pages", 0, "page cap, 0 for no cap")
	f.Duration("delay", 0, "pause each worker takes after a page (default 100ms)")
	f.Int("workers", 0, "concurrent workers (default 5)")
	f.String("headless", "", "headless browser mode: off, auto, or always")
	f.String("report-dir", "", "directory for the reports (default results)")
	f.String("metrics-addr", "", "listen address for the status server, empty to disable")
	return cmd
}

func runCrawl(cmd *cobra.Command, args []string) error {
	rt, err := resolveRuntime(cmd.Context())
	if err != nil {
		return err
	}
	cfg := rt.cfg
	if err := applyArgs(&cfg.Crawler, args[1:]); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx := cmd.Context()
	logger := rt.logger

	svc, err := openServices(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open services: %w", err)
	}
	defer svc.Close()

	summary, err := crawl(ctx, args[0], cfg, svc, logger)
	if err != nil {
		return err
	}
	out, err := deliver(ctx, summary, cfg, svc, logger)
	printSummary(cmd.OutOrStdout(), summary, out)
	if err != nil {
		return fmt.Errorf("deliver results: %w", err)
	}
	return nil
}

// crawl builds the engine from cfg and runs one session to DONE.
func crawl(
	ctx context.Context,
	seed string,
	cfg config.Config,
	svc *services,
	logger *zap.Logger,
) (crawler.Summary, error) {
	selector, closeFetchers, err := buildSelector(cfg, logger)
	if err != nil {
		return crawler.Summary{}, err
	}
	defer closeFetchers()

	hub := buildHub(logger)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := hub.Close(closeCtx); err != nil {
			logger.Warn("progress hub close failed", zap.Error(err))
		}
	}()

	opts := session.Options{
		SeedURL:      seed,
		Budget:       cfg.Crawler.Budget(),
		FetchTimeout: cfg.Crawler.FetchTimeout,
		IdlePoll:     cfg.Crawler.IdlePoll,
		Selector:     selector,
		Extractor:    extract.New(),
		Hasher:       sha256.New(),
		Clock:        system.New(),
		IDs:          uuid.New(),
		Events:       hub,
		Status:       svc.status,
	}
	if limiter := ratelimit.New(ratelimit.Config{RPS: cfg.Crawler.MaxRPS, Burst: cfg.Crawler.Burst}); limiter.Enabled() {
		opts.Limiter = limiter
	}

	sess, err := session.New(opts, logger)
	if err != nil {
		return crawler.Summary{}, err
	}

	if cfg.Metrics.Addr != "" {
		srv := api.NewServer(svc.status, logger)
		srv.Attach(sess)
		srvCtx, stop := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := srv.ListenAndServe(srvCtx, cfg.Metrics.Addr); err != nil {
				logger.Warn("status server stopped", zap.Error(err))
			}
		}()
		defer func() {
			stop()
			<-done
		}()
	}

	return sess.Run(ctx)
}

// buildSelector wires the plain and headless fetchers. The returned func
// shuts the browser down.
func buildSelector(cfg config.Config, logger *zap.Logger) (*detector.Selector, func(), error) {
	mode, err := detector.ParseMode(cfg.Headless.Mode)
	if err != nil {
		return nil, nil, err
	}
	plain := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.Crawler.FetchTimeout,
	})
	heuristic := detector.NewHeuristic(cfg.Headless.PromotionThreshold, cfg.Headless.MinWords)

	if mode == detector.ModeOff {
		return detector.NewSelector(mode, plain, headlessfetcher.NewNoop(), heuristic, logger), func() {}, nil
	}
	browser, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
		MaxParallel:       cfg.Headless.MaxParallel,
		UserAgent:         cfg.Crawler.UserAgent,
		NavigationTimeout: cfg.Headless.NavTimeout,
		Settle:            cfg.Headless.Settle,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init headless fetcher: %w", err)
	}
	return detector.NewSelector(mode, plain, browser, heuristic, logger), browser.Close, nil
}

// buildHub fans progress events out to the log and to Prometheus. The
// Prometheus sink registers once per process; later sessions log only.
func buildHub(logger *zap.Logger) *progress.Hub {
	sinkList := []progress.Sink{sinks.NewLogSink(logger)}
	promSink, err := sinks.NewPrometheusSink(nil)
	if err != nil {
		logger.Debug("prometheus progress sink unavailable", zap.Error(err))
	} else {
		sinkList = append(sinkList, promSink)
	}
	return progress.NewHub(progress.Config{Logger: logger}, sinkList...)
}

func printSummary(w io.Writer, summary crawler.Summary, out delivery) {
	p := message.NewPrinter(language.English)
	status := "complete"
	if summary.Canceled {
		status = "interrupted, partial results"
	}
	p.Fprintf(w, "Crawled %s (%s)\n", summary.BaseURL, status)
	p.Fprintf(w, "  pages: %d\n  words: %d\n", summary.TotalPages, summary.TotalWords)
	if summary.TotalPages > 0 {
		p.Fprintf(w, "  average: %.1f words per page\n", summary.AverageWords())
	}
	p.Fprintf(w, "  elapsed: %s\n", summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond))
	for _, path := range out.Reports {
		p.Fprintf(w, "  report: %s\n", path)
	}
	for _, uri := range out.Objects {
		if strings.HasPrefix(uri, "noop://") {
			continue
		}
		p.Fprintf(w, "  uploaded: %s\n", uri)
	}
}
