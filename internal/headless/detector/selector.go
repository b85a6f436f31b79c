package detector

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawl/internal/crawler"
)

// Mode selects how the session picks its fetcher.
type Mode string

// Fetch strategy modes.
const (
	ModeOff    Mode = "off"
	ModeAuto   Mode = "auto"
	ModeAlways Mode = "always"
)

// ParseMode converts a config string into a Mode.
func ParseMode(raw string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case "":
		return ModeOff, nil
	case ModeOff, ModeAuto, ModeAlways:
		return m, nil
	default:
		return "", fmt.Errorf("unknown headless mode %q", raw)
	}
}

// Selector chooses one fetcher for a whole session by probing the seed.
type Selector struct {
	mode     Mode
	plain    crawler.Fetcher
	headless crawler.Fetcher
	detector crawler.StrategyDetector
	logger   *zap.Logger
}

// NewSelector wires the selector. A nil headless fetcher forces ModeOff.
func NewSelector(
	mode Mode,
	plain, headless crawler.Fetcher,
	detector crawler.StrategyDetector,
	logger *zap.Logger,
) *Selector {
	if headless == nil || detector == nil {
		mode = ModeOff
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{
		mode:     mode,
		plain:    plain,
		headless: headless,
		detector: detector,
		logger:   logger,
	}
}

// Choose returns the fetcher every worker in the session will use. In auto
// mode the seed is fetched once with the plain fetcher; any probe failure
// keeps the plain fetcher so the seed's own failure is reported normally.
func (s *Selector) Choose(ctx context.Context, seed string) crawler.Fetcher {
	switch s.mode {
	case ModeAlways:
		return s.headless
	case ModeAuto:
	default:
		return s.plain
	}

	probe, err := s.plain.Fetch(ctx, crawler.FetchRequest{URL: seed})
	if err != nil {
		s.logger.Debug("seed probe failed, keeping plain fetcher", zap.String("url", seed), zap.Error(err))
		return s.plain
	}
	if s.detector.ShouldPromote(probe) {
		s.logger.Info("promoting session to headless fetcher", zap.String("url", seed))
		return s.headless
	}
	return s.plain
}
