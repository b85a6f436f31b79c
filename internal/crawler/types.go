package crawler

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// DefaultWorkers is the worker count used when a Budget leaves it unset.
const DefaultWorkers = 5

// ErrInvalidBudget is returned when a Budget fails validation.
var ErrInvalidBudget = errors.New("invalid crawl budget")

// State is the termination state of a crawl session.
type State string

// Session termination states.
const (
	StateRunning  State = "RUNNING"
	StateDraining State = "DRAINING"
	StateDone     State = "DONE"
)

// Budget bounds a crawl session. It is read-only once the session starts.
type Budget struct {
	// MaxPages caps the number of distinct URLs admitted. Zero means unbounded.
	MaxPages int `json:"max_pages" mapstructure:"max_pages"`
	// Delay is the pause each worker takes after finishing a task.
	Delay time.Duration `json:"delay" mapstructure:"delay"`
	// Workers is the number of concurrent task loops.
	Workers int `json:"workers" mapstructure:"workers"`
}

// Bounded reports whether the budget carries a page cap.
func (b Budget) Bounded() bool {
	return b.MaxPages > 0
}

// WithDefaults fills zero-valued fields with their defaults.
func (b Budget) WithDefaults() Budget {
	if b.Workers == 0 {
		b.Workers = DefaultWorkers
	}
	return b
}

// Validate rejects budgets the engine cannot run.
func (b Budget) Validate() error {
	if b.MaxPages < 0 {
		return fmt.Errorf("%w: max pages must be >= 0", ErrInvalidBudget)
	}
	if b.Delay < 0 {
		return fmt.Errorf("%w: delay must be >= 0", ErrInvalidBudget)
	}
	if b.Workers <= 0 {
		return fmt.Errorf("%w: workers must be > 0", ErrInvalidBudget)
	}
	return nil
}

// Task is a canonical URL scheduled for fetching.
type Task struct {
	URL        string
	AdmittedAt time.Time
}

// Extraction is the output of the parse collaborator.
type Extraction struct {
	Title string
	Text  string
	Links []string
}

// PageResult is recorded once per successfully fetched URL.
type PageResult struct {
	URL          string    `json:"url"`
	WordCount    int       `json:"word_count"`
	Text         string    `json:"text"`
	Title        string    `json:"title"`
	FetchedAt    time.Time `json:"fetched_at"`
	Category     string    `json:"category"`
	Language     string    `json:"language"`
	Links        []string  `json:"links,omitempty"`
	ContentHash  string    `json:"content_hash"`
	StatusCode   int       `json:"status_code"`
	UsedHeadless bool      `json:"used_headless"`
}

// Summary is the sealed output of a crawl session handed to reporting.
type Summary struct {
	SessionID    string       `json:"session_id"`
	BaseURL      string       `json:"base_url"`
	BaseDomain   string       `json:"base_domain"`
	BaseLanguage string       `json:"base_language"`
	Budget       Budget       `json:"budget"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   time.Time    `json:"finished_at"`
	State        State        `json:"state"`
	Canceled     bool         `json:"canceled"`
	TotalPages   int          `json:"total_pages"`
	TotalWords   int          `json:"total_words"`
	Pages        []PageResult `json:"pages"`
}

// AverageWords returns the mean word count per page, or zero for an empty run.
func (s Summary) AverageWords() float64 {
	if s.TotalPages == 0 {
		return 0
	}
	return float64(s.TotalWords) / float64(s.TotalPages)
}

// SessionStatus represents the lifecycle of a session as seen by status stores.
type SessionStatus string

// Session status values persisted in the status store.
const (
	SessionStatusRunning   SessionStatus = "running"
	SessionStatusSucceeded SessionStatus = "succeeded"
	SessionStatusFailed    SessionStatus = "failed"
	SessionStatusCanceled  SessionStatus = "canceled"
)

// SessionRecord is the status row kept for each crawl session.
type SessionRecord struct {
	ID         string        `json:"id"`
	BaseURL    string        `json:"base_url"`
	Status     SessionStatus `json:"status"`
	Started    time.Time     `json:"started_at"`
	Finished   *time.Time    `json:"finished_at,omitempty"`
	Pages      int           `json:"pages"`
	Words      int           `json:"words"`
	ErrorText  string        `json:"error_text,omitempty"`
	Parameters Budget        `json:"parameters"`
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	SessionID string
	URL       string
	Headers   http.Header
	// Timeout bounds the fetch once it starts. Fetchers that queue for
	// capacity start the clock after acquiring it. Zero uses the fetcher's
	// own default.
	Timeout time.Duration
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL          string
	StatusCode   int
	ContentType  string
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}
