package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"signupd/internal/registration"
	"signupd/internal/registration/persistence"
	derrors "signupd/pkg/domain-errors"
)

// SnapshotHandler lets a client save, resume, and discard in-progress form
// data across visits. Stored snapshots never contain passwords or the terms
// acceptance; restoring always yields a record the user must re-confirm.
type SnapshotHandler struct {
	snapshots *persistence.Adapter
}

func NewSnapshotHandler(snapshots *persistence.Adapter) *SnapshotHandler {
	return &SnapshotHandler{snapshots: snapshots}
}

func (h *SnapshotHandler) Register(r chi.Router) {
	r.Get("/api/form/snapshot", h.handleRestore)
	r.Put("/api/form/snapshot", h.handleSave)
	r.Delete("/api/form/snapshot", h.handleDiscard)
}

// snapshotKey scopes a snapshot to one form instance. Clients that omit it
// share the single-form default.
func snapshotKey(r *http.Request) string {
	if key := r.URL.Query().Get("key"); key != "" {
		return key
	}
	return persistence.DefaultKey
}

// restoredForm is the wire shape of a restored snapshot. The sensitive keys
// are absent from the payload entirely, not just empty.
type restoredForm struct {
	Email       string `json:"email,omitempty"`
	Username    string `json:"username,omitempty"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	DateOfBirth string `json:"dateOfBirth,omitempty"`
	Country     string `json:"country,omitempty"`
	Newsletter  bool   `json:"newsletter,omitempty"`
}

func (h *SnapshotHandler) handleRestore(w http.ResponseWriter, r *http.Request) {
	data, ok := h.snapshots.Restore(r.Context(), snapshotKey(r))
	if !ok {
		writeError(w, derrors.New(derrors.CodeNotFound, "no saved form data"))
		return
	}
	writeJSON(w, http.StatusOK, restoredForm{
		Email:       data.Email,
		Username:    data.Username,
		FirstName:   data.FirstName,
		LastName:    data.LastName,
		PhoneNumber: data.PhoneNumber,
		DateOfBirth: data.DateOfBirth,
		Country:     data.Country,
		Newsletter:  data.Newsletter,
	})
}

func (h *SnapshotHandler) handleSave(w http.ResponseWriter, r *http.Request) {
	var data registration.Data
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeError(w, derrors.New(derrors.CodeInvalidInput, "invalid request body"))
		return
	}
	h.snapshots.Persist(r.Context(), snapshotKey(r), data)
	w.WriteHeader(http.StatusNoContent)
}

func (h *SnapshotHandler) handleDiscard(w http.ResponseWriter, r *http.Request) {
	h.snapshots.Clear(r.Context(), snapshotKey(r))
	w.WriteHeader(http.StatusNoContent)
}
