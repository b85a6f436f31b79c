// Package publisher builds the notices sent when a crawl session ends.
package publisher

import (
	"strconv"
	"time"

	"github.com/JakeFAU/sitecrawl/internal/crawler"
)

// EventCompleted is the event name carried by completion notices.
const EventCompleted = "crawl.completed"

// Completion is published once per session after DONE.
type Completion struct {
	Event      string    `json:"event"`
	SessionID  string    `json:"session_id"`
	BaseURL    string    `json:"base_url"`
	Canceled   bool      `json:"canceled"`
	Pages      int       `json:"pages"`
	Words      int       `json:"words"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Artifacts  []string  `json:"artifacts,omitempty"`
}

// NewCompletion summarizes a sealed session and the URIs of its reports.
func NewCompletion(summary crawler.Summary, artifacts []string) Completion {
	return Completion{
		Event:      EventCompleted,
		SessionID:  summary.SessionID,
		BaseURL:    summary.BaseURL,
		Canceled:   summary.Canceled,
		Pages:      summary.TotalPages,
		Words:      summary.TotalWords,
		StartedAt:  summary.StartedAt,
		FinishedAt: summary.FinishedAt,
		Artifacts:  append([]string(nil), artifacts...),
	}
}

// Attributes are the Pub/Sub message attributes for the notice.
func (c Completion) Attributes() map[string]string {
	return map[string]string{
		"event":      c.Event,
		"session_id": c.SessionID,
		"canceled":   strconv.FormatBool(c.Canceled),
	}
}
