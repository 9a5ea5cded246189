package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// AuthHandler reserves the login surface that follows a completed
// registration. The endpoints are routed but not yet implemented.
type AuthHandler struct{}

func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

func (h *AuthHandler) Register(r chi.Router) {
	r.Post("/auth/login", h.notImplemented("/auth/login"))
	r.Post("/auth/refresh", h.notImplemented("/auth/refresh"))
	r.Post("/auth/logout", h.notImplemented("/auth/logout"))
}

func (h *AuthHandler) notImplemented(endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotImplemented, map[string]string{
			"message":  "TODO: implement handler",
			"endpoint": endpoint,
		})
	}
}
