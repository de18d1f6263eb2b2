package blob

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used by tests and single-process
// development setups.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte

	// FailSaves makes every Save return an error, for exercising the
	// storage-unavailable path in tests.
	FailSaves bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Save stores a copy of data under a fresh uuid reference.
func (s *MemoryStore) Save(data []byte, suggestedName, operator string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSaves {
		return "", fmt.Errorf("memory store: saves disabled")
	}
	ref := uuid.New().String()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.blobs[ref] = buf
	return ref, nil
}

// Read returns the bytes stored under ref.
func (s *MemoryStore) Read(ref string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

// Delete removes a stored blob. Used by tests to simulate a lost blob.
func (s *MemoryStore) Delete(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, ref)
}

// Len reports the number of stored blobs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
