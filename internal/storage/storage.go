// Package storage holds what the storage backends share: the not-found
// sentinel, a discarding blob store, and object naming.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// ErrNotFound is returned by stores when a key does not exist.
var ErrNotFound = errors.New("not found")

// NoopBlobStore drains and discards uploads. Used when no backend is configured.
type NoopBlobStore struct{}

// PutObject discards data and returns a noop:// URI.
func (NoopBlobStore) PutObject(_ context.Context, objectPath string, _ string, data io.Reader) (string, error) {
	if _, err := io.Copy(io.Discard, data); err != nil {
		return "", fmt.Errorf("drain reader: %w", err)
	}
	return "noop://" + objectPath, nil
}

// ObjectPath joins a prefix, session ID, and file name into an object key.
func ObjectPath(prefix, sessionID, name string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{prefix, sessionID, name} {
		if p = strings.Trim(p, "/"); p != "" {
			parts = append(parts, p)
		}
	}
	return path.Join(parts...)
}
