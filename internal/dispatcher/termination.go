package dispatcher

import (
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawl/internal/crawler"
)

// Termination is the RUNNING -> DRAINING -> DONE state machine of a session.
// Cancellation jumps straight to DONE. Transitions that do not apply to the
// current state are ignored.
type Termination struct {
	mu       sync.Mutex
	state    crawler.State
	canceled bool
	done     chan struct{}
	logger   *zap.Logger
}

// NewTermination returns a machine in RUNNING.
func NewTermination(logger *zap.Logger) *Termination {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Termination{
		state:  crawler.StateRunning,
		done:   make(chan struct{}),
		logger: logger,
	}
}

// State returns the current state.
func (t *Termination) State() crawler.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Canceled reports whether DONE was reached through cancellation.
func (t *Termination) Canceled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.canceled
}

// Done is closed on entering DONE.
func (t *Termination) Done() <-chan struct{} {
	return t.done
}

// Drain moves RUNNING to DRAINING.
func (t *Termination) Drain(reason string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != crawler.StateRunning {
		return false
	}
	t.transitionLocked(crawler.StateDraining, reason)
	return true
}

// Finish moves RUNNING or DRAINING to DONE once every worker has joined.
func (t *Termination) Finish() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == crawler.StateDone {
		return false
	}
	t.transitionLocked(crawler.StateDone, "workers joined")
	return true
}

// Cancel moves RUNNING or DRAINING to DONE and marks the session canceled.
func (t *Termination) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == crawler.StateDone {
		return false
	}
	t.canceled = true
	t.transitionLocked(crawler.StateDone, "canceled")
	return true
}

func (t *Termination) transitionLocked(next crawler.State, reason string) {
	t.logger.Info("session state change",
		zap.String("from", string(t.state)),
		zap.String("to", string(next)),
		zap.String("reason", reason),
	)
	t.state = next
	if next == crawler.StateDone {
		close(t.done)
	}
}
