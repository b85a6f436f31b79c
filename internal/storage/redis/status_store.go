// Package redis keeps session status records in Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/JakeFAU/sitecrawl/internal/crawler"
	"github.com/JakeFAU/sitecrawl/internal/storage"
)

// DefaultPrefix namespaces status keys.
const DefaultPrefix = "sitecrawl:session:"

// Config holds the connection settings.
type Config struct {
	Addr   string
	Prefix string
	TTL    time.Duration
}

// StatusStore writes SessionRecords as JSON values with an optional TTL.
type StatusStore struct {
	client goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

// New connects to cfg.Addr.
func New(cfg Config) (*StatusStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis.addr is required")
	}
	return NewWithClient(goredis.NewClient(&goredis.Options{Addr: cfg.Addr}), cfg.Prefix, cfg.TTL), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client goredis.UniversalClient, prefix string, ttl time.Duration) *StatusStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &StatusStore{client: client, prefix: prefix, ttl: ttl}
}

// Ping checks connectivity.
func (s *StatusStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close closes the client.
func (s *StatusStore) Close() error {
	return s.client.Close()
}

// PutSession stores the record, replacing any previous value.
func (s *StatusStore) PutSession(ctx context.Context, record crawler.SessionRecord) error {
	if record.ID == "" {
		return errors.New("session id is required")
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+record.ID, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// GetSession reads a record. Missing keys return storage.ErrNotFound.
func (s *StatusStore) GetSession(ctx context.Context, id string) (crawler.SessionRecord, error) {
	val, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return crawler.SessionRecord{}, fmt.Errorf("session %s: %w", id, storage.ErrNotFound)
		}
		return crawler.SessionRecord{}, fmt.Errorf("redis get: %w", err)
	}
	var record crawler.SessionRecord
	if err := json.Unmarshal(val, &record); err != nil {
		return crawler.SessionRecord{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return record, nil
}
