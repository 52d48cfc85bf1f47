package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	billingapp "github.com/clubledger/backend/internal/application/billing"
)

var _ billingapp.ObjectStorage = (*MemoryObjectStorage)(nil)

// MemoryObjectStorage keeps objects in a map. Used by tests and by
// local development runs without an S3 endpoint. Probe delays can be
// injected per key to mimic an eventually consistent store.
type MemoryObjectStorage struct {
	mu           sync.Mutex
	objects      map[string][]byte
	hiddenProbes map[string]int
}

// NewMemoryObjectStorage creates an empty in-memory store.
func NewMemoryObjectStorage() *MemoryObjectStorage {
	return &MemoryObjectStorage{
		objects:      make(map[string][]byte),
		hiddenProbes: make(map[string]int),
	}
}

// Upload stores a copy of data under the key.
func (s *MemoryObjectStorage) Upload(_ context.Context, storageKey string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects[storageKey] = buf
	return nil
}

// ObjectExists reports whether the key holds an object. Keys with
// pending hidden probes report absent until the probes are used up.
func (s *MemoryObjectStorage) ObjectExists(_ context.Context, storageKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := s.hiddenProbes[storageKey]; n > 0 {
		s.hiddenProbes[storageKey] = n - 1
		return false, nil
	}
	_, ok := s.objects[storageKey]
	return ok, nil
}

// DeleteObject removes the object. Missing keys are not an error.
func (s *MemoryObjectStorage) DeleteObject(_ context.Context, storageKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, storageKey)
	return nil
}

// ObjectURL returns a synthetic stable URL for the key.
func (s *MemoryObjectStorage) ObjectURL(storageKey string) string {
	return "memory://" + storageKey
}

// GenerateDownloadURL returns the stable URL; in-memory objects need no
// authorization.
func (s *MemoryObjectStorage) GenerateDownloadURL(_ context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error) {
	if expiresIn <= 0 {
		expiresIn = 15 * time.Minute
	}
	return s.ObjectURL(storageKey), time.Now().Add(expiresIn), nil
}

// Get returns the stored bytes for assertions in tests.
func (s *MemoryObjectStorage) Get(storageKey string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[storageKey]
	return data, ok
}

// Keys returns all stored keys.
func (s *MemoryObjectStorage) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	return keys
}

// HideNextProbes makes the next n existence probes for the key report
// absent, mimicking a store that lags its own writes.
func (s *MemoryObjectStorage) HideNextProbes(storageKey string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hiddenProbes[storageKey] = n
}

// String implements fmt.Stringer for debug output.
func (s *MemoryObjectStorage) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("MemoryObjectStorage(%d objects)", len(s.objects))
}
