package form

import (
	"context"
	"sync"
	"time"

	"signupd/internal/registration"
	"signupd/internal/registration/backend"
	derrors "signupd/pkg/domain-errors"
)

// MsgCheckUnavailable is shown when an availability check itself fails for a
// reason other than rate limiting. It never blocks typing or navigation.
const MsgCheckUnavailable = "Unable to verify right now. Please try again."

// DefaultDebounce matches the typing pause the availability checks wait for.
const DefaultDebounce = 400 * time.Millisecond

// AvailabilityClient is the slice of the simulated backend the checker needs.
type AvailabilityClient interface {
	CheckUsername(ctx context.Context, username string) (backend.UsernameCheck, error)
	CheckEmailUnique(ctx context.Context, email string) (backend.EmailCheck, error)
}

// Checker runs debounced, latest-wins availability checks for the username
// and email fields and feeds the results back into a Machine's error map.
//
// Each trigger bumps a per-field sequence number; a check result is applied
// only if its sequence is still the newest for that field, so a slow response
// for an old value can never overwrite the verdict for the current one.
type Checker struct {
	mu       sync.Mutex
	machine  *Machine
	client   AvailabilityClient
	debounce time.Duration
	seq      map[string]uint64
	timers   map[string]*time.Timer
	closed   bool
	wg       sync.WaitGroup
}

// NewChecker builds a checker bound to one machine. A non-positive debounce
// fires checks immediately, which tests rely on.
func NewChecker(machine *Machine, client AvailabilityClient, debounce time.Duration) *Checker {
	return &Checker{
		machine:  machine,
		client:   client,
		debounce: debounce,
		seq:      map[string]uint64{},
		timers:   map[string]*time.Timer{},
	}
}

// CheckUsername schedules an availability check for the username field.
func (c *Checker) CheckUsername(ctx context.Context, username string) {
	c.trigger(ctx, registration.FieldUsername, func(ctx context.Context) (string, error) {
		res, err := c.client.CheckUsername(ctx, username)
		if err != nil {
			return "", err
		}
		if !res.Available {
			return res.Message, nil
		}
		return "", nil
	})
}

// CheckEmail schedules a uniqueness check for the email field.
func (c *Checker) CheckEmail(ctx context.Context, email string) {
	c.trigger(ctx, registration.FieldEmail, func(ctx context.Context) (string, error) {
		res, err := c.client.CheckEmailUnique(ctx, email)
		if err != nil {
			return "", err
		}
		if !res.Unique {
			return res.Message, nil
		}
		return "", nil
	})
}

// Close stops pending timers and discards every in-flight result. It blocks
// until started checks have returned.
func (c *Checker) Close() {
	c.mu.Lock()
	c.closed = true
	for _, t := range c.timers {
		if t.Stop() {
			c.wg.Done()
		}
	}
	c.timers = map[string]*time.Timer{}
	c.mu.Unlock()
	c.wg.Wait()
}

// trigger resets the field's debounce timer and records the new sequence.
// Only the last value entered during the debounce window is checked.
func (c *Checker) trigger(ctx context.Context, field string, check func(context.Context) (string, error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.seq[field]++
	seq := c.seq[field]
	// Stopping an unfired timer cancels its pending run, so its WaitGroup
	// slot must be released here.
	if t, ok := c.timers[field]; ok && t.Stop() {
		c.wg.Done()
	}

	run := func() {
		defer c.wg.Done()
		message, err := check(ctx)
		if err != nil {
			message = checkFailureMessage(err)
		}
		c.apply(field, seq, message)
	}

	c.wg.Add(1)
	if c.debounce <= 0 {
		go run()
		return
	}
	c.timers[field] = time.AfterFunc(c.debounce, run)
}

// apply installs a result only while it is still the newest for its field.
// The sequence check and the write happen under the same lock, so a stale
// goroutine that already passed the check can never overwrite a newer
// verdict. Machine never calls back into the Checker, so no lock cycle.
func (c *Checker) apply(field string, seq uint64, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.seq[field] != seq {
		return
	}
	c.machine.applyFieldCheck(field, message)
}

func checkFailureMessage(err error) string {
	if derrors.CodeOf(err) == derrors.CodeRateLimited {
		if msg := derrors.MessageOf(err); msg != "" {
			return msg
		}
	}
	return MsgCheckUnavailable
}
