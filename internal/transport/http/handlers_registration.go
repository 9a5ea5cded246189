package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"signupd/internal/registration"
	"signupd/internal/registration/backend"
	"signupd/internal/registration/schema"
	"signupd/internal/welcome"
	derrors "signupd/pkg/domain-errors"
)

// Backend is the slice of the registration backend the handlers need.
type Backend interface {
	CheckUsername(ctx context.Context, username string) (backend.UsernameCheck, error)
	CheckEmailUnique(ctx context.Context, email string) (backend.EmailCheck, error)
	SubmitRegistration(ctx context.Context, data registration.Data) (backend.SubmitResult, error)
	ListCountries(ctx context.Context) ([]backend.Country, error)
}

// RegistrationHandler exposes the registration API.
type RegistrationHandler struct {
	client  Backend
	schema  *schema.Validator
	welcome *welcome.Service
	logger  *slog.Logger
}

// NewRegistrationHandler builds the handler. welcome may be nil when no
// signing key is configured; registrations then succeed without a token.
func NewRegistrationHandler(client Backend, v *schema.Validator, w *welcome.Service, logger *slog.Logger) *RegistrationHandler {
	return &RegistrationHandler{client: client, schema: v, welcome: w, logger: logger}
}

func (h *RegistrationHandler) Register(r chi.Router) {
	r.Post("/api/check-username", h.handleCheckUsername)
	r.Post("/api/check-email", h.handleCheckEmail)
	r.Post("/api/register", h.handleRegister)
	r.Get("/api/countries", h.handleCountries)
}

type checkUsernameRequest struct {
	Username string `json:"username"`
}

func (h *RegistrationHandler) handleCheckUsername(w http.ResponseWriter, r *http.Request) {
	var req checkUsernameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, derrors.New(derrors.CodeInvalidInput, "invalid request body"))
		return
	}

	res, err := h.client.CheckUsername(r.Context(), req.Username)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type checkEmailRequest struct {
	Email string `json:"email"`
}

func (h *RegistrationHandler) handleCheckEmail(w http.ResponseWriter, r *http.Request) {
	var req checkEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, derrors.New(derrors.CodeInvalidInput, "invalid request body"))
		return
	}

	res, err := h.client.CheckEmailUnique(r.Context(), req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type registerResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	Token        string `json:"token"`
	WelcomeToken string `json:"welcomeToken,omitempty"`
}

func (h *RegistrationHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var data registration.Data
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeError(w, derrors.New(derrors.CodeInvalidInput, "invalid request body"))
		return
	}

	normalized, fieldErrs := h.schema.Validate(r.Context(), data, schema.ScopeAll)
	if fieldErrs != nil {
		writeFieldErrors(w, fieldErrs)
		return
	}

	res, err := h.client.SubmitRegistration(r.Context(), normalized)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := registerResponse{
		Success: res.Success,
		Message: res.Message,
		Token:   res.Token,
	}
	if !res.Success {
		writeJSON(w, http.StatusConflict, resp)
		return
	}

	if h.welcome != nil {
		token, err := h.welcome.Issue(normalized.Username, normalized.Email)
		if err != nil {
			// Registration already happened; the account is usable without
			// the onboarding token.
			h.logger.ErrorContext(r.Context(), "welcome token issue failed", "error", err)
		} else {
			resp.WelcomeToken = token
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *RegistrationHandler) handleCountries(w http.ResponseWriter, r *http.Request) {
	countries, err := h.client.ListCountries(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, countries)
}
