package backend

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"signupd/internal/audit"
	"signupd/internal/platform/logger"
	"signupd/internal/registration"
	"signupd/internal/registration/backend/directory"
	"signupd/internal/registration/backend/ratelimit"
	derrors "signupd/pkg/domain-errors"
	"signupd/pkg/platform/sentinel"
)

type ClientSuite struct {
	suite.Suite
	ctx     context.Context
	now     time.Time
	store   *directory.InMemoryStore
	limiter *ratelimit.Limiter
	events  *audit.InMemoryStore
	client  *Client
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	s.store = directory.NewInMemoryStore()
	s.limiter = ratelimit.New(5, 10*time.Second,
		ratelimit.WithClock(func() time.Time { return s.now }))
	s.events = audit.NewInMemoryStore()
	s.client = New(s.store, s.limiter, logger.NewNop(),
		WithLatency(0),
		WithAuditPublisher(audit.NewPublisher(s.events)),
	)
}

func (s *ClientSuite) TestCheckUsername() {
	s.Run("reserved username reported as taken", func() {
		res, err := s.client.CheckUsername(s.ctx, "admin")
		s.Require().NoError(err)
		s.False(res.Available)
		s.Equal(MsgUsernameTaken, res.Message)
	})

	s.Run("reservation check ignores case and padding", func() {
		res, err := s.client.CheckUsername(s.ctx, "  Admin ")
		s.Require().NoError(err)
		s.False(res.Available)
	})

	s.Run("empty username is required", func() {
		res, err := s.client.CheckUsername(s.ctx, "")
		s.Require().NoError(err)
		s.False(res.Available)
		s.Equal(MsgUsernameRequired, res.Message)
	})

	s.Run("fresh username available", func() {
		res, err := s.client.CheckUsername(s.ctx, "new_user")
		s.Require().NoError(err)
		s.True(res.Available)
		s.Empty(res.Message)
	})
}

func (s *ClientSuite) TestCheckEmailUnique() {
	s.Run("taken email reported", func() {
		res, err := s.client.CheckEmailUnique(s.ctx, "existing@example.com")
		s.Require().NoError(err)
		s.False(res.Unique)
		s.Equal(MsgEmailTaken, res.Message)
	})

	s.Run("empty email is required", func() {
		res, err := s.client.CheckEmailUnique(s.ctx, "")
		s.Require().NoError(err)
		s.False(res.Unique)
		s.Equal(MsgEmailRequired, res.Message)
	})

	s.Run("fresh email unique", func() {
		res, err := s.client.CheckEmailUnique(s.ctx, "new@x.com")
		s.Require().NoError(err)
		s.True(res.Unique)
	})
}

func (s *ClientSuite) TestSubmitRegistration() {
	data := registration.Data{
		Email:           "new@x.com",
		Username:        "new_user",
		Password:        "StrongPassw0rd!",
		ConfirmPassword: "StrongPassw0rd!",
		Terms:           true,
	}

	s.Run("fresh record succeeds with a token and reserves identifiers", func() {
		res, err := s.client.SubmitRegistration(s.ctx, data)
		s.Require().NoError(err)
		s.True(res.Success)
		s.Equal(MsgRegistered, res.Message)
		s.NotEmpty(res.Token)

		reserved, err := s.store.IsUsernameReserved(s.ctx, "new_user")
		s.Require().NoError(err)
		s.True(reserved)
		taken, err := s.store.IsEmailTaken(s.ctx, "new@x.com")
		s.Require().NoError(err)
		s.True(taken)

		events, err := s.events.List(s.ctx)
		s.Require().NoError(err)
		s.Require().NotEmpty(events)
		s.Equal(audit.ActionSubmitRegistration, events[len(events)-1].Action)
		s.Equal("success", events[len(events)-1].Outcome)
	})

	s.Run("reserved username fails as no longer available", func() {
		conflicting := data
		conflicting.Username = "admin"
		conflicting.Email = "other@x.com"

		res, err := s.client.SubmitRegistration(s.ctx, conflicting)
		s.Require().NoError(err)
		s.False(res.Success)
		s.Equal(MsgUsernameUnavailable, res.Message)
		s.NotEmpty(res.Token)
	})

	s.Run("second submission of the same username conflicts", func() {
		res, err := s.client.SubmitRegistration(s.ctx, data)
		s.Require().NoError(err)
		s.False(res.Success)
		s.Equal(MsgUsernameUnavailable, res.Message)
	})
}

// racingDirectory answers the availability pre-check with "free" but rejects
// the reservation, like a concurrent submission landing in between.
type racingDirectory struct{}

func (racingDirectory) IsUsernameReserved(context.Context, string) (bool, error) { return false, nil }
func (racingDirectory) IsEmailTaken(context.Context, string) (bool, error)       { return false, nil }
func (racingDirectory) Reserve(context.Context, directory.Account) error {
	return fmt.Errorf("username taken: %w", sentinel.ErrConflict)
}
func (racingDirectory) Reset(context.Context) error { return nil }

func (s *ClientSuite) TestSubmitRegistrationLosesReservationRace() {
	client := New(racingDirectory{}, s.limiter, logger.NewNop(),
		WithLatency(0),
		WithAuditPublisher(audit.NewPublisher(s.events)),
	)

	res, err := client.SubmitRegistration(s.ctx, registration.Data{
		Email:    "racer@x.com",
		Username: "racer",
		Password: "StrongPassw0rd!",
	})
	s.Require().NoError(err)
	s.False(res.Success)
	s.Equal(MsgUsernameUnavailable, res.Message)
	s.NotEmpty(res.Token)

	events, err := s.events.List(s.ctx)
	s.Require().NoError(err)
	s.Require().NotEmpty(events)
	s.Equal("conflict", events[len(events)-1].Outcome)
}

func (s *ClientSuite) TestSubmissionInvalidatesAvailabilityCache() {
	res, err := s.client.CheckUsername(s.ctx, "cached_user")
	s.Require().NoError(err)
	s.True(res.Available)

	data := registration.Data{
		Email:    "cached@x.com",
		Username: "cached_user",
		Password: "StrongPassw0rd!",
	}
	submitted, err := s.client.SubmitRegistration(s.ctx, data)
	s.Require().NoError(err)
	s.Require().True(submitted.Success)

	res, err = s.client.CheckUsername(s.ctx, "cached_user")
	s.Require().NoError(err)
	s.False(res.Available, "cache must not hide the new reservation")
}

func (s *ClientSuite) TestRateLimiting() {
	s.Run("sixth check inside the window is rate limited", func() {
		for range 5 {
			_, err := s.client.CheckUsername(s.ctx, "someone")
			s.Require().NoError(err)
		}
		_, err := s.client.CheckUsername(s.ctx, "someone")
		s.Require().Error(err)
		s.True(derrors.Is(err, derrors.CodeRateLimited))
		s.Equal(MsgRateLimited, derrors.MessageOf(err))
	})

	s.Run("endpoints have independent windows", func() {
		_, err := s.client.CheckEmailUnique(s.ctx, "free@x.com")
		s.NoError(err)
	})

	s.Run("window sliding past ten seconds admits again", func() {
		s.now = s.now.Add(10*time.Second + time.Millisecond)
		_, err := s.client.CheckUsername(s.ctx, "someone")
		s.NoError(err)
	})
}

func (s *ClientSuite) TestCancellationStopsLatencySleep() {
	slow := New(s.store, ratelimit.New(5, 10*time.Second), logger.NewNop(),
		WithLatency(5*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := slow.CheckUsername(ctx, "whoever")
	s.Require().ErrorIs(err, context.Canceled)
}

func (s *ClientSuite) TestListCountries() {
	countries, err := s.client.ListCountries(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(countries, 8)
	s.Equal(Country{Code: "US", Name: "United States"}, countries[0])
	s.Equal(Country{Code: "IN", Name: "India"}, countries[len(countries)-1])
}
