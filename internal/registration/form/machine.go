// Package form drives the multi-step registration flow: step navigation,
// accumulated field values, validation errors, and the submission sequence.
package form

import (
	"context"
	"log/slog"
	"maps"
	"sync"

	"signupd/internal/registration"
	"signupd/internal/registration/backend"
	"signupd/internal/registration/persistence"
	"signupd/internal/registration/schema"
	derrors "signupd/pkg/domain-errors"
)

// Phase is the submission lifecycle of one registration attempt.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
)

// MsgSubmitFailed is the fallback form-level message when a submission error
// carries no user-facing text.
const MsgSubmitFailed = "Unable to complete registration. Please try again."

// State is a point-in-time view of the flow. Maps are copies; callers may
// keep them.
type State struct {
	CurrentStep  int
	Data         registration.Data
	Errors       map[string]string
	Touched      map[string]bool
	Phase        Phase
	IsSubmitting bool
	// IsValid is the success flag: true only after a submission succeeded,
	// not a statement about schema validity.
	IsValid           bool
	SubmissionMessage string
}

// Client is the slice of the simulated backend the machine needs.
type Client interface {
	SubmitRegistration(ctx context.Context, data registration.Data) (backend.SubmitResult, error)
}

// Machine owns the form state for the lifetime of one registration attempt.
// All mutations go through its methods; the zero state is step 0, idle.
type Machine struct {
	mu        sync.Mutex
	state     State
	schema    *schema.Validator
	client    Client
	snapshots *persistence.Adapter
	key       string
	logger    *slog.Logger
	restored  bool
}

// New builds a machine in the initial state. The snapshot adapter may be nil
// when persistence is disabled.
func New(v *schema.Validator, client Client, snapshots *persistence.Adapter, logger *slog.Logger) *Machine {
	return &Machine{
		state:     initialState(),
		schema:    v,
		client:    client,
		snapshots: snapshots,
		key:       persistence.DefaultKey,
		logger:    logger,
	}
}

func initialState() State {
	return State{
		CurrentStep: 0,
		Phase:       PhaseIdle,
		Errors:      map[string]string{},
		Touched:     map[string]bool{},
	}
}

// State returns a copy of the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotState()
}

// snapshotState must be called with the lock held.
func (m *Machine) snapshotState() State {
	s := m.state
	s.Errors = maps.Clone(m.state.Errors)
	s.Touched = maps.Clone(m.state.Touched)
	return s
}

// Restore loads the persisted non-sensitive snapshot into the record, once,
// at mount. Later field changes are mirrored back to storage.
func (m *Machine) Restore(ctx context.Context) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.restored {
		return m.snapshotState()
	}
	m.restored = true

	if m.snapshots == nil {
		return m.snapshotState()
	}
	if data, ok := m.snapshots.Restore(ctx, m.key); ok {
		m.state.Data = data
	}
	return m.snapshotState()
}

// SetFields merges a sparse update into the record. Always legal. Updated
// fields are marked touched and the non-sensitive snapshot is mirrored.
func (m *Machine) SetFields(ctx context.Context, partial registration.Partial) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	partial.Apply(&m.state.Data)
	m.touch(partial)
	m.mirror(ctx)
	return m.snapshotState()
}

// NextStep validates the active step's fields. On failure the errors map is
// populated and the step does not change. On success the machine advances;
// on the final step it runs the submission sequence instead.
func (m *Machine) NextStep(ctx context.Context) State {
	m.mu.Lock()

	// Succeeded is terminal; only Reset leaves it.
	if m.state.Phase == PhaseSucceeded {
		state := m.snapshotState()
		m.mu.Unlock()
		return state
	}

	step := registration.Step(m.state.CurrentStep)
	if m.state.CurrentStep == registration.StepCount-1 {
		m.mu.Unlock()
		return m.Submit(ctx)
	}

	normalized, errs := m.schema.Validate(ctx, m.state.Data, schema.StepScope(step))
	if errs != nil {
		m.state.Errors = errs
		state := m.snapshotState()
		m.mu.Unlock()
		return state
	}

	m.state.Data = normalized
	m.state.Errors = map[string]string{}
	m.state.CurrentStep++
	m.mirror(ctx)
	state := m.snapshotState()
	m.mu.Unlock()
	return state
}

// PrevStep moves back one step, floored at 0. Data and errors are kept.
func (m *Machine) PrevStep() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.CurrentStep > 0 {
		m.state.CurrentStep--
	}
	return m.snapshotState()
}

// Submit runs the submission sequence: full-record validation, then the
// backend call. Failed submissions keep the entered data for a manual retry;
// there is no automatic retry.
func (m *Machine) Submit(ctx context.Context) State {
	m.mu.Lock()
	if m.state.Phase == PhaseSubmitting || m.state.Phase == PhaseSucceeded {
		state := m.snapshotState()
		m.mu.Unlock()
		return state
	}
	m.state.Phase = PhaseSubmitting
	m.state.IsSubmitting = true
	m.state.SubmissionMessage = ""

	normalized, errs := m.schema.Validate(ctx, m.state.Data, schema.ScopeAll)
	if errs != nil {
		m.state.Phase = PhaseFailed
		m.state.IsSubmitting = false
		m.state.Errors = errs
		m.state.SubmissionMessage = MsgSubmitFailed
		state := m.snapshotState()
		m.mu.Unlock()
		return state
	}
	m.state.Data = normalized
	data := m.state.Data
	m.mu.Unlock()

	// The backend call happens outside the lock so field edits and state
	// reads are not blocked by simulated latency.
	res, err := m.client.SubmitRegistration(ctx, data)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.IsSubmitting = false

	switch {
	case err != nil:
		m.state.Phase = PhaseFailed
		m.state.SubmissionMessage = failureMessage(err)
		m.logger.WarnContext(ctx, "registration submission failed",
			"error", err,
		)
	case !res.Success:
		m.state.Phase = PhaseFailed
		m.state.SubmissionMessage = res.Message
	default:
		if m.snapshots != nil {
			m.snapshots.Clear(ctx, m.key)
		}
		m.state.Phase = PhaseSucceeded
		m.state.IsValid = true
		m.state.SubmissionMessage = res.Message
		m.state.Data = registration.Data{}
		m.state.Errors = map[string]string{}
	}
	return m.snapshotState()
}

// Reset returns to the initial state unconditionally and clears the
// persisted snapshot. The only exit from the succeeded phase.
func (m *Machine) Reset(ctx context.Context) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = initialState()
	if m.snapshots != nil {
		m.snapshots.Clear(ctx, m.key)
	}
	return m.snapshotState()
}

// applyFieldCheck records an asynchronous availability result. An empty
// message clears the field error. Called by the Checker only for results
// that are still current.
func (m *Machine) applyFieldCheck(field, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if message == "" {
		delete(m.state.Errors, field)
		return
	}
	m.state.Errors[field] = message
}

// mirror persists the non-sensitive snapshot. Skipped until the initial
// restore ran so a slow restore cannot clobber fresh input with old data.
// Must be called with the lock held.
func (m *Machine) mirror(ctx context.Context) {
	if m.snapshots == nil || !m.restored {
		return
	}
	m.snapshots.Persist(ctx, m.key, m.state.Data)
}

func (m *Machine) touch(p registration.Partial) {
	set := func(field string, changed bool) {
		if changed {
			m.state.Touched[field] = true
		}
	}
	set(registration.FieldEmail, p.Email != nil)
	set(registration.FieldUsername, p.Username != nil)
	set(registration.FieldPassword, p.Password != nil)
	set(registration.FieldConfirmPassword, p.ConfirmPassword != nil)
	set(registration.FieldFirstName, p.FirstName != nil)
	set(registration.FieldLastName, p.LastName != nil)
	set(registration.FieldPhoneNumber, p.PhoneNumber != nil)
	set(registration.FieldDateOfBirth, p.DateOfBirth != nil)
	set(registration.FieldCountry, p.Country != nil)
	set(registration.FieldNewsletter, p.Newsletter != nil)
	set(registration.FieldTerms, p.Terms != nil)
}

func failureMessage(err error) string {
	if msg := derrors.MessageOf(err); msg != "" {
		return msg
	}
	return MsgSubmitFailed
}
