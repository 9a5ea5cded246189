// Package persistence mirrors the non-sensitive part of an in-progress
// registration to durable storage so an interrupted signup can resume.
// Storage is best-effort: failures are logged and swallowed, never surfaced.
package persistence

import (
	"context"
	"sync"

	"signupd/pkg/platform/sentinel"
)

// SnapshotStore is the raw byte-level backing for form snapshots.
type SnapshotStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// InMemoryStore keeps snapshots in process memory; the default when neither
// a snapshot directory nor Redis is configured.
type InMemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{snapshots: make(map[string][]byte)}
}

func (s *InMemoryStore) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.snapshots[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *InMemoryStore) Save(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	s.snapshots[key] = stored
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, key)
	return nil
}
