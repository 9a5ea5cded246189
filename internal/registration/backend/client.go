// Package backend simulates the registration API: availability checks,
// submission, and the country reference list, complete with injected latency
// and per-endpoint rate limiting. All state lives in explicit injected
// stores; nothing here is ambient.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/singleflight"

	"signupd/internal/audit"
	"signupd/internal/platform/metrics"
	"signupd/internal/registration"
	"signupd/internal/registration/backend/directory"
	"signupd/internal/registration/backend/ratelimit"
	derrors "signupd/pkg/domain-errors"
	"signupd/pkg/platform/sentinel"
)

// Endpoint keys for the shared rate limiter.
const (
	KeyCheckUsername = "/api/check-username"
	KeyCheckEmail    = "/api/check-email"
	KeyRegister      = "/api/register"
)

// MsgRateLimited is surfaced when the sliding window is exhausted.
const MsgRateLimited = "Too many requests. Please slow down."

// User-facing messages for the simulated endpoints.
const (
	MsgUsernameRequired    = "Username is required"
	MsgUsernameTaken       = "Username is already taken"
	MsgEmailRequired       = "Email is required"
	MsgEmailTaken          = "Email is already registered"
	MsgUsernameUnavailable = "Selected username is no longer available. Please choose another one."
	MsgRegistered          = "Registration successful! Welcome aboard."
)

// UsernameCheck is the response of a username availability probe.
type UsernameCheck struct {
	Available bool   `json:"available"`
	Message   string `json:"message,omitempty"`
}

// EmailCheck is the response of an email uniqueness probe.
type EmailCheck struct {
	Unique  bool   `json:"unique"`
	Message string `json:"message,omitempty"`
}

// SubmitResult is the response of a registration submission. Token is a
// fresh opaque value on every call, success or not.
type SubmitResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Token   string `json:"token"`
}

// Country is one entry of the static reference list.
type Country struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// countries is the fixed, ordered reference list.
var countries = []Country{
	{Code: "US", Name: "United States"},
	{Code: "CA", Name: "Canada"},
	{Code: "GB", Name: "United Kingdom"},
	{Code: "AU", Name: "Australia"},
	{Code: "DE", Name: "Germany"},
	{Code: "FR", Name: "France"},
	{Code: "JP", Name: "Japan"},
	{Code: "IN", Name: "India"},
}

// availabilityCacheTTL keeps identical availability probes cheap between
// keystrokes without hiding reservations for long.
const availabilityCacheTTL = 5 * time.Second

// Client is the simulated backend. Safe for concurrent use.
type Client struct {
	directory directory.Store
	limiter   *ratelimit.Limiter
	publisher *audit.Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	latency   time.Duration

	group singleflight.Group
	cache *gocache.Cache
}

// Option tunes a Client.
type Option func(*Client)

// WithLatency sets the injected latency per call; zero disables it (tests).
func WithLatency(d time.Duration) Option {
	return func(c *Client) { c.latency = d }
}

// WithAuditPublisher wires audit events for submissions and rate-limit
// rejections.
func WithAuditPublisher(p *audit.Publisher) Option {
	return func(c *Client) { c.publisher = p }
}

// WithMetrics wires Prometheus counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New builds a Client over the given reservation store and limiter.
func New(dir directory.Store, limiter *ratelimit.Limiter, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		directory: dir,
		limiter:   limiter,
		logger:    logger,
		tracer:    otel.Tracer("signupd/backend"),
		latency:   300 * time.Millisecond,
		cache:     gocache.New(availabilityCacheTTL, time.Minute),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckUsername probes whether a username can still be claimed.
func (c *Client) CheckUsername(ctx context.Context, username string) (UsernameCheck, error) {
	ctx, span := c.tracer.Start(ctx, "backend.CheckUsername")
	defer span.End()

	if err := c.admit(ctx, KeyCheckUsername); err != nil {
		return UsernameCheck{}, err
	}
	c.countCheck("username")

	normalized := strings.ToLower(strings.TrimSpace(username))
	v, err, _ := c.group.Do(KeyCheckUsername+":"+normalized, func() (any, error) {
		if cached, ok := c.cache.Get(KeyCheckUsername + ":" + normalized); ok {
			return cached, nil
		}
		if err := c.sleep(ctx); err != nil {
			return UsernameCheck{}, err
		}

		var res UsernameCheck
		switch {
		case normalized == "":
			res = UsernameCheck{Available: false, Message: MsgUsernameRequired}
		default:
			reserved, err := c.directory.IsUsernameReserved(ctx, normalized)
			if err != nil {
				return UsernameCheck{}, derrors.Wrap(derrors.CodeUnavailable, "availability check failed", err)
			}
			if reserved {
				res = UsernameCheck{Available: false, Message: MsgUsernameTaken}
			} else {
				res = UsernameCheck{Available: true}
			}
		}
		c.cache.SetDefault(KeyCheckUsername+":"+normalized, res)
		return res, nil
	})
	if err != nil {
		return UsernameCheck{}, err
	}
	return v.(UsernameCheck), nil
}

// CheckEmailUnique probes whether an email is still unregistered.
func (c *Client) CheckEmailUnique(ctx context.Context, email string) (EmailCheck, error) {
	ctx, span := c.tracer.Start(ctx, "backend.CheckEmailUnique")
	defer span.End()

	if err := c.admit(ctx, KeyCheckEmail); err != nil {
		return EmailCheck{}, err
	}
	c.countCheck("email")

	normalized := strings.ToLower(strings.TrimSpace(email))
	v, err, _ := c.group.Do(KeyCheckEmail+":"+normalized, func() (any, error) {
		if cached, ok := c.cache.Get(KeyCheckEmail + ":" + normalized); ok {
			return cached, nil
		}
		if err := c.sleep(ctx); err != nil {
			return EmailCheck{}, err
		}

		var res EmailCheck
		switch {
		case normalized == "":
			res = EmailCheck{Unique: false, Message: MsgEmailRequired}
		default:
			taken, err := c.directory.IsEmailTaken(ctx, normalized)
			if err != nil {
				return EmailCheck{}, derrors.Wrap(derrors.CodeUnavailable, "uniqueness check failed", err)
			}
			if taken {
				res = EmailCheck{Unique: false, Message: MsgEmailTaken}
			} else {
				res = EmailCheck{Unique: true}
			}
		}
		c.cache.SetDefault(KeyCheckEmail+":"+normalized, res)
		return res, nil
	})
	if err != nil {
		return EmailCheck{}, err
	}
	return v.(EmailCheck), nil
}

// SubmitRegistration finalizes a registration. On success the username and
// email become reserved, modeling eventual persistence. A username that was
// reserved after the availability check fails with MsgUsernameUnavailable.
func (c *Client) SubmitRegistration(ctx context.Context, data registration.Data) (SubmitResult, error) {
	ctx, span := c.tracer.Start(ctx, "backend.SubmitRegistration")
	defer span.End()

	started := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.SubmissionDuration.Observe(time.Since(started).Seconds())
		}
	}()

	if err := c.admit(ctx, KeyRegister); err != nil {
		return SubmitResult{}, err
	}
	if err := c.sleep(ctx); err != nil {
		return SubmitResult{}, err
	}

	username := strings.ToLower(data.Username)
	email := strings.ToLower(data.Email)

	reserved, err := c.directory.IsUsernameReserved(ctx, username)
	if err != nil {
		return SubmitResult{}, derrors.Wrap(derrors.CodeUnavailable, "registration failed", err)
	}
	if reserved {
		c.countRegistration("conflict")
		c.emit(ctx, audit.Event{
			Action:   audit.ActionSubmitRegistration,
			Username: username,
			Email:    email,
			Outcome:  "conflict",
			Reason:   "username reserved concurrently",
		})
		return SubmitResult{Success: false, Message: MsgUsernameUnavailable, Token: uuid.NewString()}, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(data.Password), bcrypt.DefaultCost)
	if err != nil {
		return SubmitResult{}, derrors.Wrap(derrors.CodeInternal, "registration failed", err)
	}

	account := directory.Account{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := c.directory.Reserve(ctx, account); err != nil {
		// The pre-check above is not atomic with the reservation; a racing
		// submission may have claimed the username in between.
		if errors.Is(err, sentinel.ErrConflict) {
			c.countRegistration("conflict")
			c.emit(ctx, audit.Event{
				Action:   audit.ActionSubmitRegistration,
				Username: username,
				Email:    email,
				Outcome:  "conflict",
				Reason:   "username reserved concurrently",
			})
			return SubmitResult{Success: false, Message: MsgUsernameUnavailable, Token: uuid.NewString()}, nil
		}
		return SubmitResult{}, derrors.Wrap(derrors.CodeUnavailable, "registration failed", err)
	}

	// Drop stale "available" answers for the identifiers just consumed.
	c.cache.Delete(KeyCheckUsername + ":" + username)
	c.cache.Delete(KeyCheckEmail + ":" + email)

	c.countRegistration("success")
	c.emit(ctx, audit.Event{
		Action:   audit.ActionSubmitRegistration,
		Username: username,
		Email:    email,
		Outcome:  "success",
	})

	return SubmitResult{Success: true, Message: MsgRegistered, Token: uuid.NewString()}, nil
}

// ListCountries returns the static country reference list.
func (c *Client) ListCountries(ctx context.Context) ([]Country, error) {
	if err := c.sleep(ctx); err != nil {
		return nil, err
	}
	out := make([]Country, len(countries))
	copy(out, countries)
	return out, nil
}

// admit consults the shared rate limiter before invoking a simulated
// handler. Exhausted windows fail without touching the directory.
func (c *Client) admit(ctx context.Context, key string) error {
	res := c.limiter.Allow(key)
	if res.Allowed {
		return nil
	}
	if c.metrics != nil {
		c.metrics.RateLimitedTotal.Inc()
	}
	c.logger.WarnContext(ctx, "rate limited",
		"endpoint", key,
		"reset_at", res.ResetAt,
	)
	c.emit(ctx, audit.Event{
		Action:  audit.ActionRateLimited,
		Outcome: "denied",
		Reason:  fmt.Sprintf("window exhausted for %s", key),
	})
	return derrors.New(derrors.CodeRateLimited, MsgRateLimited)
}

// sleep injects the simulated network latency, honoring cancellation.
func (c *Client) sleep(ctx context.Context) error {
	if c.latency <= 0 {
		return nil
	}
	timer := time.NewTimer(c.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) countCheck(field string) {
	if c.metrics != nil {
		c.metrics.AvailabilityChecksTotal.WithLabelValues(field).Inc()
	}
}

func (c *Client) countRegistration(outcome string) {
	if c.metrics != nil {
		c.metrics.RegistrationsTotal.WithLabelValues(outcome).Inc()
	}
}

func (c *Client) emit(ctx context.Context, event audit.Event) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Emit(ctx, event); err != nil {
		c.logger.WarnContext(ctx, "audit emit failed", "error", err)
	}
}
