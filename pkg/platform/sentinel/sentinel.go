package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Snapshot and directory stores
// return these (optionally wrapped) so callers can translate them into domain
// errors without importing store internals.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
