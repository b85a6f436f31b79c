// Package results aggregates page results for a crawl session.
package results

import (
	"sort"
	"sync"

	"github.com/JakeFAU/sitecrawl/internal/crawler"
)

// Accumulator stores at most one PageResult per canonical URL along with the
// running word total. It is safe for concurrent use.
type Accumulator struct {
	mu     sync.RWMutex
	pages  map[string]crawler.PageResult
	words  int
	sealed bool
}

// New constructs an empty Accumulator.
func New() *Accumulator {
	return &Accumulator{pages: make(map[string]crawler.PageResult)}
}

// Record stores result under its URL. It returns false if the URL was already
// recorded or the accumulator is sealed.
func (a *Accumulator) Record(result crawler.PageResult) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sealed {
		return false
	}
	if _, exists := a.pages[result.URL]; exists {
		return false
	}
	if result.WordCount < 0 {
		result.WordCount = 0
	}
	result.Links = append([]string(nil), result.Links...)
	a.pages[result.URL] = result
	a.words += result.WordCount
	return true
}

// Seal makes the accumulator read-only.
func (a *Accumulator) Seal() {
	a.mu.Lock()
	a.sealed = true
	a.mu.Unlock()
}

// Sealed reports whether Seal has been called.
func (a *Accumulator) Sealed() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sealed
}

// TotalWords returns the sum of recorded word counts.
func (a *Accumulator) TotalWords() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.words
}

// Len returns the number of recorded pages.
func (a *Accumulator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.pages)
}

// Get returns the result recorded for url.
func (a *Accumulator) Get(url string) (crawler.PageResult, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	page, ok := a.pages[url]
	return page, ok
}

// Snapshot returns the recorded pages sorted by word count descending, with
// ties broken by URL.
func (a *Accumulator) Snapshot() []crawler.PageResult {
	a.mu.RLock()
	out := make([]crawler.PageResult, 0, len(a.pages))
	for _, page := range a.pages {
		out = append(out, page)
	}
	a.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].WordCount != out[j].WordCount {
			return out[i].WordCount > out[j].WordCount
		}
		return out[i].URL < out[j].URL
	})
	return out
}
