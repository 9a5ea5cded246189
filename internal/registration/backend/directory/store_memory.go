package directory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"signupd/pkg/platform/sentinel"
)

// InMemoryStore keeps the reservation sets in process memory. It favors
// clarity over performance and is the default for local runs and tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	reserved map[string]struct{}
	taken    map[string]struct{}
	accounts map[string]Account
}

// NewInMemoryStore returns a store seeded with the fixed reserved usernames
// and taken emails.
func NewInMemoryStore() *InMemoryStore {
	s := &InMemoryStore{}
	s.seed()
	return s
}

func (s *InMemoryStore) seed() {
	s.reserved = make(map[string]struct{}, len(SeedUsernames))
	for _, name := range SeedUsernames {
		s.reserved[name] = struct{}{}
	}
	s.taken = make(map[string]struct{}, len(SeedEmails))
	for _, email := range SeedEmails {
		s.taken[email] = struct{}{}
	}
	s.accounts = make(map[string]Account)
}

func (s *InMemoryStore) IsUsernameReserved(_ context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.reserved[strings.ToLower(strings.TrimSpace(username))]
	return ok, nil
}

func (s *InMemoryStore) IsEmailTaken(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.taken[strings.ToLower(strings.TrimSpace(email))]
	return ok, nil
}

// Reserve claims the username and email. A username that is already reserved
// reports sentinel.ErrConflict; the availability check may have raced another
// submission.
func (s *InMemoryStore) Reserve(_ context.Context, account Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	username := strings.ToLower(account.Username)
	email := strings.ToLower(account.Email)
	if _, ok := s.reserved[username]; ok {
		return fmt.Errorf("username %q: %w", username, sentinel.ErrConflict)
	}
	s.reserved[username] = struct{}{}
	s.taken[email] = struct{}{}
	s.accounts[username] = account
	return nil
}

func (s *InMemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seed()
	return nil
}
