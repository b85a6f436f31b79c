package headless

import (
	"context"
	"errors"

	"github.com/JakeFAU/sitecrawl/internal/crawler"
)

// ErrDisabled is returned by Noop for every fetch.
var ErrDisabled = errors.New("headless fetcher not configured")

// Noop stands in for the browser fetcher when headless mode is off. Its
// failures are reported as connection failures so the page is skipped.
type Noop struct{}

// NewNoop creates a new Noop fetcher.
func NewNoop() *Noop {
	return &Noop{}
}

// Fetch always fails.
func (Noop) Fetch(_ context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	return crawler.FetchResponse{}, &crawler.FetchError{
		Kind: crawler.KindConnectionFailed,
		URL:  request.URL,
		Err:  ErrDisabled,
	}
}
