// Package directory holds the reservation state behind the simulated
// backend: usernames that can no longer be claimed and emails that already
// belong to an account. The state is an explicit injected store with defined
// reset semantics so tests never leak into each other.
package directory

import (
	"context"
	"time"
)

// Account is a completed registration as the directory records it. The
// password is stored only as a bcrypt hash.
type Account struct {
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Store tracks reserved usernames and taken emails.
type Store interface {
	// IsUsernameReserved reports whether the username can no longer be
	// claimed. Matching is case-insensitive.
	IsUsernameReserved(ctx context.Context, username string) (bool, error)
	// IsEmailTaken reports whether the email already belongs to an account.
	// Matching is case-insensitive.
	IsEmailTaken(ctx context.Context, email string) (bool, error)
	// Reserve records a completed registration, marking its username and
	// email unavailable for future signups. An already-reserved username
	// reports an error wrapping sentinel.ErrConflict.
	Reserve(ctx context.Context, account Account) error
	// Reset restores the seeded state, discarding accounts created since.
	Reset(ctx context.Context) error
}

// SeedUsernames are reserved before any registration happens.
var SeedUsernames = []string{"admin", "support", "root", "system", "testuser", "demo"}

// SeedEmails are taken before any registration happens.
var SeedEmails = []string{"existing@example.com", "user@example.com"}
