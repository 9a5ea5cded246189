// Package httptransport is the thin HTTP layer. Handlers decode, delegate to
// domain services, and encode; business rules stay out of this package.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"signupd/internal/platform/redis"
	derrors "signupd/pkg/domain-errors"
)

// Deps collects everything the router wires. Redis and Gatherer may be nil;
// the matching endpoints degrade instead of failing to boot.
type Deps struct {
	Registration *RegistrationHandler
	Snapshots    *SnapshotHandler
	Auth         *AuthHandler
	Gatherer     prometheus.Gatherer
	Redis        *redis.Client
	Logger       *slog.Logger
}

// NewRouter wires all public endpoints.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(ClientContext)
	r.Use(RequestLogger(d.Logger))

	d.Registration.Register(r)
	d.Auth.Register(r)
	if d.Snapshots != nil {
		d.Snapshots.Register(r)
	}

	r.Get("/healthz", healthHandler(d.Redis))
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func healthHandler(rc *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ok"}
		if rc != nil {
			if err := rc.Health(r.Context()); err != nil {
				status["status"] = "degraded"
				status["redis"] = "unreachable"
				writeJSON(w, http.StatusServiceUnavailable, status)
				return
			}
			status["redis"] = "ok"
		}
		writeJSON(w, http.StatusOK, status)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError translates a coded domain error into the shared JSON envelope.
func writeError(w http.ResponseWriter, err error) {
	code := derrors.CodeOf(err)
	body := map[string]string{"error": string(code)}
	if msg := derrors.MessageOf(err); msg != "" {
		body["message"] = msg
	}
	writeJSON(w, derrors.ToHTTPStatus(code), body)
}

// writeFieldErrors reports schema violations keyed by field name.
func writeFieldErrors(w http.ResponseWriter, fields map[string]string) {
	writeJSON(w, derrors.ToHTTPStatus(derrors.CodeInvalidInput), map[string]any{
		"error":  string(derrors.CodeInvalidInput),
		"fields": fields,
	})
}
