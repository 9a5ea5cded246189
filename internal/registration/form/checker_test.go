package form

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"signupd/internal/registration"
	"signupd/internal/registration/backend"
	derrors "signupd/pkg/domain-errors"
)

// stubDirectory answers availability probes from fixed sets and can hold a
// response open until the test releases it.
type stubDirectory struct {
	mu       sync.Mutex
	taken    map[string]bool
	err      error
	calls    int
	blockers map[string]chan struct{}
}

func newStubDirectory(taken ...string) *stubDirectory {
	d := &stubDirectory{taken: map[string]bool{}, blockers: map[string]chan struct{}{}}
	for _, t := range taken {
		d.taken[t] = true
	}
	return d
}

// blockOn makes the next check for value wait until the returned channel is
// closed.
func (d *stubDirectory) blockOn(value string) chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := make(chan struct{})
	d.blockers[value] = ch
	return ch
}

func (d *stubDirectory) wait(value string) {
	d.mu.Lock()
	ch := d.blockers[value]
	d.mu.Unlock()
	if ch != nil {
		<-ch
	}
}

func (d *stubDirectory) CheckUsername(_ context.Context, username string) (backend.UsernameCheck, error) {
	d.mu.Lock()
	d.calls++
	err := d.err
	taken := d.taken[username]
	d.mu.Unlock()
	d.wait(username)
	if err != nil {
		return backend.UsernameCheck{}, err
	}
	if taken {
		return backend.UsernameCheck{Available: false, Message: backend.MsgUsernameTaken}, nil
	}
	return backend.UsernameCheck{Available: true}, nil
}

func (d *stubDirectory) CheckEmailUnique(_ context.Context, email string) (backend.EmailCheck, error) {
	d.mu.Lock()
	d.calls++
	err := d.err
	taken := d.taken[email]
	d.mu.Unlock()
	d.wait(email)
	if err != nil {
		return backend.EmailCheck{}, err
	}
	if taken {
		return backend.EmailCheck{Unique: false, Message: backend.MsgEmailTaken}, nil
	}
	return backend.EmailCheck{Unique: true}, nil
}

func (d *stubDirectory) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type CheckerSuite struct {
	suite.Suite
	ctx       context.Context
	directory *stubDirectory
	machine   *Machine
}

func TestCheckerSuite(t *testing.T) {
	suite.Run(t, new(CheckerSuite))
}

func (s *CheckerSuite) SetupTest() {
	s.ctx = context.Background()
	s.directory = newStubDirectory("admin", "existing@example.com")
	s.machine = New(nil, nil, nil, nil)
}

func (s *CheckerSuite) fieldError(field string) func() string {
	return func() string {
		return s.machine.State().Errors[field]
	}
}

func (s *CheckerSuite) eventually(cond func() bool) {
	s.Require().Eventually(cond, time.Second, 5*time.Millisecond)
}

func (s *CheckerSuite) TestTakenUsernameSetsFieldError() {
	checker := NewChecker(s.machine, s.directory, 0)
	defer checker.Close()

	checker.CheckUsername(s.ctx, "admin")
	s.eventually(func() bool {
		return s.fieldError(registration.FieldUsername)() == backend.MsgUsernameTaken
	})
}

func (s *CheckerSuite) TestAvailableUsernameClearsFieldError() {
	checker := NewChecker(s.machine, s.directory, 0)
	defer checker.Close()

	checker.CheckUsername(s.ctx, "admin")
	s.eventually(func() bool {
		return s.fieldError(registration.FieldUsername)() != ""
	})

	checker.CheckUsername(s.ctx, "someone_else")
	s.eventually(func() bool {
		return s.fieldError(registration.FieldUsername)() == ""
	})
}

func (s *CheckerSuite) TestRegisteredEmailSetsFieldError() {
	checker := NewChecker(s.machine, s.directory, 0)
	defer checker.Close()

	checker.CheckEmail(s.ctx, "existing@example.com")
	s.eventually(func() bool {
		return s.fieldError(registration.FieldEmail)() == backend.MsgEmailTaken
	})
}

func (s *CheckerSuite) TestStaleResultDiscarded() {
	checker := NewChecker(s.machine, s.directory, 0)
	defer checker.Close()

	// The first check, against a taken name, stalls until released. The
	// second, against a free name, completes first.
	release := s.directory.blockOn("admin")
	checker.CheckUsername(s.ctx, "admin")
	checker.CheckUsername(s.ctx, "someone_else")

	s.eventually(func() bool {
		return s.directory.callCount() == 2
	})
	close(release)
	checker.Close()

	// The slow verdict for the old value must not surface.
	s.Empty(s.fieldError(registration.FieldUsername)())
}

func (s *CheckerSuite) TestConcurrentTriggersLastVerdictWins() {
	checker := NewChecker(s.machine, s.directory, 0)
	defer checker.Close()

	// Hammer the field with alternating verdicts; whatever interleaving the
	// scheduler picks, only the newest trigger's result may stand.
	for range 25 {
		checker.CheckUsername(s.ctx, "someone_free")
		checker.CheckUsername(s.ctx, "admin")
	}

	s.eventually(func() bool {
		return s.directory.callCount() == 50
	})
	s.eventually(func() bool {
		return s.fieldError(registration.FieldUsername)() == backend.MsgUsernameTaken
	})

	// Once the newest verdict landed, a slow stale goroutine must not
	// overwrite it.
	time.Sleep(20 * time.Millisecond)
	s.Equal(backend.MsgUsernameTaken, s.fieldError(registration.FieldUsername)())
}

func (s *CheckerSuite) TestDebounceCollapsesRapidTriggers() {
	checker := NewChecker(s.machine, s.directory, 30*time.Millisecond)
	defer checker.Close()

	checker.CheckUsername(s.ctx, "a")
	checker.CheckUsername(s.ctx, "ad")
	checker.CheckUsername(s.ctx, "admin")

	s.eventually(func() bool {
		return s.fieldError(registration.FieldUsername)() == backend.MsgUsernameTaken
	})
	s.Equal(1, s.directory.callCount())
}

func (s *CheckerSuite) TestRateLimitedCheckSurfacesMessage() {
	s.directory.err = derrors.New(derrors.CodeRateLimited, backend.MsgRateLimited)
	checker := NewChecker(s.machine, s.directory, 0)
	defer checker.Close()

	checker.CheckUsername(s.ctx, "any_name")
	s.eventually(func() bool {
		return s.fieldError(registration.FieldUsername)() == backend.MsgRateLimited
	})
}

func (s *CheckerSuite) TestCheckFailureUsesFallbackMessage() {
	s.directory.err = derrors.New(derrors.CodeUnavailable, "directory offline")
	checker := NewChecker(s.machine, s.directory, 0)
	defer checker.Close()

	checker.CheckEmail(s.ctx, "any@x.com")
	s.eventually(func() bool {
		return s.fieldError(registration.FieldEmail)() == MsgCheckUnavailable
	})
}

func (s *CheckerSuite) TestCloseDiscardsInFlightResults() {
	checker := NewChecker(s.machine, s.directory, 0)

	release := s.directory.blockOn("admin")
	checker.CheckUsername(s.ctx, "admin")
	s.eventually(func() bool {
		return s.directory.callCount() == 1
	})

	done := make(chan struct{})
	go func() {
		checker.Close()
		close(done)
	}()
	// Wait for Close to mark the checker closed before releasing the blocked
	// check, so the in-flight result is genuinely discarded rather than
	// landing while the checker is still open.
	s.eventually(func() bool {
		checker.mu.Lock()
		defer checker.mu.Unlock()
		return checker.closed
	})
	close(release)
	<-done

	s.Empty(s.fieldError(registration.FieldUsername)())

	// Triggers after Close are ignored outright.
	checker.CheckUsername(s.ctx, "admin")
	s.Equal(1, s.directory.callCount())
}

func (s *CheckerSuite) TestCloseWithPendingDebounceTimer() {
	checker := NewChecker(s.machine, s.directory, time.Hour)
	checker.CheckUsername(s.ctx, "admin")
	checker.Close()
	s.Zero(s.directory.callCount())
}
