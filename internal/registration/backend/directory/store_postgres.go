package directory

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"signupd/pkg/platform/sentinel"
)

// PostgresStore persists the reservation state so it survives restarts when
// a DATABASE_URL is configured. Seeded rows carry a NULL password hash and
// are kept across Reset.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an existing connection pool.
func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the backing tables and seeds the fixed reservation rows.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS reserved_usernames (
	username      TEXT PRIMARY KEY,
	email         TEXT,
	password_hash TEXT,
	seeded        BOOLEAN NOT NULL DEFAULT FALSE,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS taken_emails (
	email      TEXT PRIMARY KEY,
	seeded     BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create directory tables: %w", err)
	}

	for _, name := range SeedUsernames {
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO reserved_usernames (username, seeded) VALUES ($1, TRUE) ON CONFLICT DO NOTHING`,
			name); err != nil {
			return fmt.Errorf("seed reserved username: %w", err)
		}
	}
	for _, email := range SeedEmails {
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO taken_emails (email, seeded) VALUES ($1, TRUE) ON CONFLICT DO NOTHING`,
			email); err != nil {
			return fmt.Errorf("seed taken email: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) IsUsernameReserved(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM reserved_usernames WHERE username = $1)`,
		strings.ToLower(strings.TrimSpace(username))).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query reserved username: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) IsEmailTaken(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM taken_emails WHERE email = $1)`,
		strings.ToLower(strings.TrimSpace(email))).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query taken email: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) Reserve(ctx context.Context, account Account) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reserve: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`INSERT INTO reserved_usernames (username, email, password_hash, created_at)
		 VALUES ($1, $2, $3, $4) ON CONFLICT (username) DO NOTHING`,
		strings.ToLower(account.Username), strings.ToLower(account.Email),
		account.PasswordHash, account.CreatedAt)
	if err != nil {
		return fmt.Errorf("reserve username: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("username %q: %w", strings.ToLower(account.Username), sentinel.ErrConflict)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO taken_emails (email, created_at) VALUES ($1, $2) ON CONFLICT (email) DO NOTHING`,
		strings.ToLower(account.Email), account.CreatedAt); err != nil {
		return fmt.Errorf("reserve email: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM reserved_usernames WHERE NOT seeded`); err != nil {
		return fmt.Errorf("reset reserved usernames: %w", err)
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM taken_emails WHERE NOT seeded`); err != nil {
		return fmt.Errorf("reset taken emails: %w", err)
	}
	return nil
}
