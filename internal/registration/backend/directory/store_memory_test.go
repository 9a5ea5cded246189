package directory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"signupd/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
}

func (s *InMemoryStoreSuite) TestSeededState() {
	s.Run("seeded usernames are reserved", func() {
		for _, name := range SeedUsernames {
			reserved, err := s.store.IsUsernameReserved(s.ctx, name)
			s.Require().NoError(err)
			s.True(reserved, "expected %q to be reserved", name)
		}
	})

	s.Run("reservation check is case-insensitive", func() {
		reserved, err := s.store.IsUsernameReserved(s.ctx, "Admin")
		s.Require().NoError(err)
		s.True(reserved)
	})

	s.Run("seeded emails are taken", func() {
		taken, err := s.store.IsEmailTaken(s.ctx, "existing@example.com")
		s.Require().NoError(err)
		s.True(taken)
	})

	s.Run("fresh identifiers are free", func() {
		reserved, err := s.store.IsUsernameReserved(s.ctx, "new_user")
		s.Require().NoError(err)
		s.False(reserved)

		taken, err := s.store.IsEmailTaken(s.ctx, "new@x.com")
		s.Require().NoError(err)
		s.False(taken)
	})
}

func (s *InMemoryStoreSuite) TestReserve() {
	account := Account{
		Username:     "New_User",
		Email:        "New@X.com",
		PasswordHash: "$2a$10$fakehash",
		CreatedAt:    time.Now(),
	}
	s.Require().NoError(s.store.Reserve(s.ctx, account))

	reserved, err := s.store.IsUsernameReserved(s.ctx, "new_user")
	s.Require().NoError(err)
	s.True(reserved)

	taken, err := s.store.IsEmailTaken(s.ctx, "new@x.com")
	s.Require().NoError(err)
	s.True(taken)
}

func (s *InMemoryStoreSuite) TestReserveConflicts() {
	s.Run("seeded username cannot be claimed", func() {
		err := s.store.Reserve(s.ctx, Account{Username: "Admin", Email: "admin2@x.com"})
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("second reservation of the same username conflicts", func() {
		s.Require().NoError(s.store.Reserve(s.ctx, Account{Username: "new_user", Email: "new@x.com"}))
		err := s.store.Reserve(s.ctx, Account{Username: "new_user", Email: "other@x.com"})
		s.Require().ErrorIs(err, sentinel.ErrConflict)

		taken, takenErr := s.store.IsEmailTaken(s.ctx, "other@x.com")
		s.Require().NoError(takenErr)
		s.False(taken, "a rejected reservation must not claim the email")
	})
}

func (s *InMemoryStoreSuite) TestReset() {
	s.Require().NoError(s.store.Reserve(s.ctx, Account{Username: "new_user", Email: "new@x.com"}))
	s.Require().NoError(s.store.Reset(s.ctx))

	reserved, err := s.store.IsUsernameReserved(s.ctx, "new_user")
	s.Require().NoError(err)
	s.False(reserved, "reset must discard post-seed reservations")

	stillReserved, err := s.store.IsUsernameReserved(s.ctx, "admin")
	s.Require().NoError(err)
	s.True(stillReserved, "reset must keep the seeded state")
}
