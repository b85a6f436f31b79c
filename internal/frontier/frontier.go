// Package frontier implements the crawl frontier: the seen-set that acts as
// the dedup authority and the FIFO queue of pending tasks layered over it.
package frontier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/sitecrawl/internal/crawler"
)

// ErrExhausted is returned by Next once the frontier is finished. It is
// permanent: every later call returns it too.
var ErrExhausted = errors.New("frontier exhausted")

const defaultIdlePoll = time.Second

// Config controls frontier admission and polling.
//   - MaxPages: cap on distinct URLs ever admitted (0 = unbounded).
//   - IdlePoll: upper bound on how long Next waits before rechecking an empty queue.
type Config struct {
	MaxPages int
	IdlePoll time.Duration
}

// Stats is a point-in-time view of frontier bookkeeping.
type Stats struct {
	Seen     int `json:"seen"`
	Queued   int `json:"queued"`
	InFlight int `json:"in_flight"`
	Done     int `json:"done"`
}

// Frontier is safe for concurrent use. All state is guarded by one mutex so
// the seen-check and the cap-check in Admit are a single atomic step.
type Frontier struct {
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	seen     map[string]struct{}
	queue    []crawler.Task
	inFlight map[string]struct{}
	done     int
	finished bool
	wake     chan struct{}

	finishedCh chan struct{}
	capCh      chan struct{}
	capOnce    sync.Once
}

// New constructs an empty frontier.
func New(cfg Config) *Frontier {
	if cfg.IdlePoll <= 0 {
		cfg.IdlePoll = defaultIdlePoll
	}
	if cfg.MaxPages < 0 {
		cfg.MaxPages = 0
	}
	return &Frontier{
		cfg:        cfg,
		now:        time.Now,
		seen:       make(map[string]struct{}),
		inFlight:   make(map[string]struct{}),
		wake:       make(chan struct{}),
		finishedCh: make(chan struct{}),
		capCh:      make(chan struct{}),
	}
}

// Seed admits the session's starting URL regardless of the cap. It still
// counts toward the cap.
func (f *Frontier) Seed(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.admitLocked(url, true)
}

// Admit schedules url if it has never been seen and the cap still has room.
func (f *Frontier) Admit(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.admitLocked(url, false)
}

func (f *Frontier) admitLocked(url string, force bool) bool {
	if f.finished || url == "" {
		return false
	}
	if _, ok := f.seen[url]; ok {
		return false
	}
	if !force && f.capReachedLocked() {
		return false
	}
	f.seen[url] = struct{}{}
	f.queue = append(f.queue, crawler.Task{URL: url, AdmittedAt: f.now()})
	if f.capReachedLocked() {
		f.capOnce.Do(func() { close(f.capCh) })
	}
	f.broadcastLocked()
	return true
}

func (f *Frontier) capReachedLocked() bool {
	return f.cfg.MaxPages > 0 && len(f.seen) >= f.cfg.MaxPages
}

// Next pops the next pending task and marks it in flight. While the queue is
// empty but other tasks are in flight it waits for a state change or the idle
// poll interval. Once nothing is queued or in flight the frontier finishes and
// ErrExhausted is returned.
func (f *Frontier) Next(ctx context.Context) (crawler.Task, error) {
	for {
		f.mu.Lock()
		if f.finished {
			f.mu.Unlock()
			return crawler.Task{}, ErrExhausted
		}
		if len(f.queue) > 0 {
			task := f.queue[0]
			f.queue[0] = crawler.Task{}
			f.queue = f.queue[1:]
			f.inFlight[task.URL] = struct{}{}
			f.mu.Unlock()
			return task, nil
		}
		if len(f.inFlight) == 0 {
			f.finishLocked()
			f.mu.Unlock()
			return crawler.Task{}, ErrExhausted
		}
		wake := f.wake
		f.mu.Unlock()

		timer := time.NewTimer(f.cfg.IdlePoll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return crawler.Task{}, fmt.Errorf("frontier next canceled: %w", ctx.Err())
		case <-wake:
		case <-timer.C:
		}
		timer.Stop()
	}
}

// MarkDone ends the in-flight lifetime of url. The URL stays in the seen-set.
func (f *Frontier) MarkDone(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.inFlight[url]; !ok {
		return
	}
	delete(f.inFlight, url)
	f.done++
	f.broadcastLocked()
}

// Close finishes the frontier early. Pending tasks are abandoned and waiters
// receive ErrExhausted.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finishLocked()
}

func (f *Frontier) finishLocked() {
	if f.finished {
		return
	}
	f.finished = true
	close(f.finishedCh)
	f.broadcastLocked()
}

func (f *Frontier) broadcastLocked() {
	close(f.wake)
	f.wake = make(chan struct{})
}

// Finished is closed once the frontier is exhausted or closed.
func (f *Frontier) Finished() <-chan struct{} {
	return f.finishedCh
}

// CapSignal is closed once the seen-set reaches the page cap.
func (f *Frontier) CapSignal() <-chan struct{} {
	return f.capCh
}

// CapReached reports whether admission is closed by the page cap.
func (f *Frontier) CapReached() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.capReachedLocked()
}

// admitted reports whether url has ever been admitted.
func (f *Frontier) admitted(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.seen[url]
	return ok
}

// Stats returns a snapshot of the frontier counters.
func (f *Frontier) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Stats{
		Seen:     len(f.seen),
		Queued:   len(f.queue),
		InFlight: len(f.inFlight),
		Done:     f.done,
	}
}
