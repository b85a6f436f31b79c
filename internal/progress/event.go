package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the milestone an Event represents.
type Stage string

// Supported progress stages.
const (
	StageSessionStart    Stage = "SESSION_START"
	StageSessionDone     Stage = "SESSION_DONE"
	StageSessionCanceled Stage = "SESSION_CANCELED"
	StageFetchDone       Stage = "FETCH_DONE"
	StageFetchFailed     Stage = "FETCH_FAILED"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// Event captures one step of crawl progress.
type Event struct {
	// SessionID identifies the crawl session.
	SessionID string
	// TS is the UTC time recorded by the emitter.
	TS    time.Time
	Stage Stage
	// Site is the host the fetch targeted.
	Site string
	URL  string
	// Bytes is the body size of a completed fetch.
	Bytes int64
	// Words is the word count of a completed page, or the session total on
	// SESSION_DONE.
	Words int64
	// Pages is the page total on SESSION_DONE and SESSION_CANCELED.
	Pages       int64
	StatusClass StatusClass
	// Kind carries the FetchError kind on FETCH_FAILED.
	Kind string
	Dur  time.Duration
	// Note holds short free-form context such as error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.SessionID == "" {
		return errors.New("session id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageSessionStart, StageSessionDone, StageSessionCanceled:
	case StageFetchDone:
		if e.Site == "" {
			return errors.New("fetch done requires site")
		}
		if e.StatusClass == "" {
			return errors.New("fetch done requires status class")
		}
	case StageFetchFailed:
		if e.Site == "" {
			return errors.New("fetch failed requires site")
		}
		if e.Kind == "" {
			return errors.New("fetch failed requires kind")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// Terminal reports whether the event closes a session.
func (e Event) Terminal() bool {
	return e.Stage == StageSessionDone || e.Stage == StageSessionCanceled
}

// ClassifyStatus groups HTTP status codes.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
