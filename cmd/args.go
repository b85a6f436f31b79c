package cmd

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/sitecrawl/internal/config"
)

var (
	errNegative = errors.New("must be >= 0")
	errTooLarge = errors.New("out of range")
)

// maxDelaySeconds is the longest delay a time.Duration can hold.
const maxDelaySeconds = float64(math.MaxInt64 / int64(time.Second))

// parseMaxPages reads the page cap. Zero and the words unlimited, all, and
// none mean no cap.
func parseMaxPages(raw string) (int, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "", "0", "unlimited", "all", "none":
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("max_pages %q: %w", raw, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("max_pages %q: %w", raw, errNegative)
	}
	return n, nil
}

// parseDelay accepts plain seconds ("0.5") or a duration ("500ms").
func parseDelay(raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		switch {
		case math.IsNaN(secs) || math.IsInf(secs, 0) || secs > maxDelaySeconds:
			return 0, fmt.Errorf("delay %q: %w", raw, errTooLarge)
		case secs < 0:
			return 0, fmt.Errorf("delay %q: %w", raw, errNegative)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("delay %q: %w", raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("delay %q: %w", raw, errNegative)
	}
	return d, nil
}

func parseWorkers(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("workers %q: %w", raw, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("workers %q: must be > 0", raw)
	}
	return n, nil
}

// applyArgs overrides the crawler section with the optional positional
// arguments [max_pages] [delay] [workers].
func applyArgs(c *config.CrawlerConfig, args []string) error {
	if len(args) > 0 {
		n, err := parseMaxPages(args[0])
		if err != nil {
			return err
		}
		c.MaxPages = n
	}
	if len(args) > 1 {
		d, err := parseDelay(args[1])
		if err != nil {
			return err
		}
		c.Delay = d
	}
	if len(args) > 2 {
		n, err := parseWorkers(args[2])
		if err != nil {
			return err
		}
		c.Workers = n
	}
	return nil
}
