package persistence

import (
	"context"
	"errors"
	"log/slog"

	"github.com/goccy/go-json"

	"signupd/internal/platform/metrics"
	"signupd/internal/registration"
	"signupd/pkg/platform/sentinel"
)

// DefaultKey is the storage key used by the single-form gateway flow.
const DefaultKey = "registration-form-data"

// snapshot is the persisted shape. Password, confirm password, and the terms
// acceptance are deliberately absent.
type snapshot struct {
	Email       string `json:"email,omitempty"`
	Username    string `json:"username,omitempty"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	DateOfBirth string `json:"dateOfBirth,omitempty"`
	Country     string `json:"country,omitempty"`
	Newsletter  bool   `json:"newsletter,omitempty"`
}

// Adapter wraps a SnapshotStore with the registration-specific rules: strip
// sensitive fields on write, tolerate corrupt or missing data on read, and
// never propagate storage failures to the caller.
type Adapter struct {
	store   SnapshotStore
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewAdapter builds an adapter. metrics may be nil.
func NewAdapter(store SnapshotStore, logger *slog.Logger, m *metrics.Metrics) *Adapter {
	return &Adapter{store: store, logger: logger, metrics: m}
}

// Restore reads a previously persisted snapshot into a partial record.
// Missing or corrupt data yields ok=false; the form starts empty.
func (a *Adapter) Restore(ctx context.Context, key string) (registration.Data, bool) {
	raw, err := a.store.Load(ctx, key)
	if err != nil {
		// An absent snapshot is the normal first-visit case; anything else
		// is a degraded store and gets the same treatment as write failures.
		if !errors.Is(err, sentinel.ErrNotFound) {
			a.swallow(ctx, "restore", key, err)
		}
		return registration.Data{}, false
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		a.swallow(ctx, "restore", key, err)
		return registration.Data{}, false
	}

	return registration.Data{
		Email:       snap.Email,
		Username:    snap.Username,
		FirstName:   snap.FirstName,
		LastName:    snap.LastName,
		PhoneNumber: snap.PhoneNumber,
		DateOfBirth: snap.DateOfBirth,
		Country:     snap.Country,
		Newsletter:  snap.Newsletter,
	}, true
}

// Persist overwrites the stored snapshot with the record's non-sensitive
// fields. Failures are swallowed and logged.
func (a *Adapter) Persist(ctx context.Context, key string, d registration.Data) {
	snap := snapshot{
		Email:       d.Email,
		Username:    d.Username,
		FirstName:   d.FirstName,
		LastName:    d.LastName,
		PhoneNumber: d.PhoneNumber,
		DateOfBirth: d.DateOfBirth,
		Country:     d.Country,
		Newsletter:  d.Newsletter,
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		a.swallow(ctx, "persist", key, err)
		return
	}
	if err := a.store.Save(ctx, key, raw); err != nil {
		a.swallow(ctx, "persist", key, err)
	}
}

// Clear removes the stored snapshot, after a successful submission or an
// explicit reset. Failures are swallowed and logged.
func (a *Adapter) Clear(ctx context.Context, key string) {
	if err := a.store.Delete(ctx, key); err != nil {
		a.swallow(ctx, "clear", key, err)
	}
}

func (a *Adapter) swallow(ctx context.Context, op, key string, err error) {
	if a.metrics != nil {
		a.metrics.SnapshotErrorsTotal.Inc()
	}
	a.logger.WarnContext(ctx, "snapshot storage degraded",
		"op", op,
		"key", key,
		"error", err,
	)
}
