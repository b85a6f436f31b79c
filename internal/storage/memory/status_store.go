package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/sitecrawl/internal/crawler"
	"github.com/JakeFAU/sitecrawl/internal/storage"
)

// StatusStore keeps session records in memory.
type StatusStore struct {
	mu       sync.RWMutex
	sessions map[string]crawler.SessionRecord
	history  map[string][]crawler.SessionStatus
}

// NewStatusStore constructs a StatusStore.
func NewStatusStore() *StatusStore {
	return &StatusStore{
		sessions: make(map[string]crawler.SessionRecord),
		history:  make(map[string][]crawler.SessionStatus),
	}
}

// PutSession replaces the record for record.ID. A terminal record cannot be
// moved back to running.
func (s *StatusStore) PutSession(_ context.Context, record crawler.SessionRecord) error {
	if record.ID == "" {
		return errors.New("session id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.sessions[record.ID]; ok && isTerminal(prev.Status) && !isTerminal(record.Status) {
		return fmt.Errorf("session %s already %s", record.ID, prev.Status)
	}
	s.sessions[record.ID] = record
	s.history[record.ID] = append(s.history[record.ID], record.Status)
	return nil
}

// GetSession returns the record for id.
func (s *StatusStore) GetSession(_ context.Context, id string) (crawler.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.sessions[id]
	if !ok {
		return crawler.SessionRecord{}, fmt.Errorf("session %s: %w", id, storage.ErrNotFound)
	}
	return record, nil
}

// History returns the statuses written for id, oldest first.
func (s *StatusStore) History(id string) []crawler.SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]crawler.SessionStatus(nil), s.history[id]...)
}

func isTerminal(status crawler.SessionStatus) bool {
	switch status {
	case crawler.SessionStatusSucceeded, crawler.SessionStatusFailed, crawler.SessionStatusCanceled:
		return true
	default:
		return false
	}
}
