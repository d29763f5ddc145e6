package registration

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the fallback used when redis is disabled or not
// reachable, and in tests. Entries do not survive a restart
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]*Registration
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		ttl:     ttl,
		entries: make(map[string]*Registration),
	}
}

func (s *MemoryStore) Add(_ context.Context, reg *Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *reg
	if clone.ExpiresAt == 0 {
		clone.ExpiresAt = time.Now().UTC().Add(s.ttl).Unix()
	}
	s.entries[Key(reg.Email, reg.IsAdmin)] = &clone
	return nil
}

func (s *MemoryStore) Get(_ context.Context, email string, isAdmin bool) (*Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg := s.live(email, isAdmin)
	if reg == nil {
		return nil, nil
	}
	clone := *reg
	return &clone, nil
}

func (s *MemoryStore) VerifyAndRemove(
	_ context.Context,
	email string,
	code string,
	isAdmin bool,
) (*Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg := s.live(email, isAdmin)
	if reg == nil {
		return nil, nil
	}
	if reg.VerificationCode != code {
		// wrong code, the entry stays for another try
		return nil, nil
	}
	delete(s.entries, Key(email, isAdmin))
	return reg, nil
}

func (s *MemoryStore) UpdateCode(
	_ context.Context,
	email string,
	code string,
	isAdmin bool,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg := s.live(email, isAdmin)
	if reg == nil {
		return false, nil
	}
	reg.VerificationCode = code
	reg.ExpiresAt = time.Now().UTC().Add(s.ttl).Unix()
	return true, nil
}

func (s *MemoryStore) Stats(_ context.Context) (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	stats := &Stats{}
	for k, v := range s.entries {
		if v.Expired(now) {
			delete(s.entries, k)
			continue
		}
		stats.Pending++
		stats.Keys = append(stats.Keys, keyPrefix+k)
	}
	return stats, nil
}

func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// live returns the entry if present and unexpired, expired entries
// are dropped on the spot, callers hold the lock
func (s *MemoryStore) live(email string, isAdmin bool) *Registration {
	key := Key(email, isAdmin)
	reg, ok := s.entries[key]
	if !ok {
		return nil
	}
	if reg.Expired(time.Now().UTC()) {
		delete(s.entries, key)
		return nil
	}
	return reg
}
