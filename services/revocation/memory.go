package revocation

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/masomo-lms/core/auth"
)

type memoryStore struct {
	mu      sync.Mutex
	revoked map[string]time.Time // {tokenID: until}
	nowFunc func() time.Time
}

var _ auth.RevocationStore = (*memoryStore)(nil)

// NewMemoryStore keeps revoked token IDs in process. Used in DEV, tests, and when no Redis is configured.
func NewMemoryStore() auth.RevocationStore {
	return &memoryStore{
		revoked: make(map[string]time.Time),
		nowFunc: time.Now,
	}
}

func (s *memoryStore) Revoke(_ context.Context, tokenID string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	if !until.After(now) {
		return nil
	}
	// purge expired entries so the map does not grow forever
	for id, exp := range s.revoked {
		if !exp.After(now) {
			delete(s.revoked, id)
		}
	}
	s.revoked[tokenID] = until
	return nil
}

func (s *memoryStore) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	until, ok := s.revoked[tokenID]
	return ok && until.After(s.nowFunc()), nil
}
