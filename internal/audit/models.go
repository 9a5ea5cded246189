package audit

import "time"

// Actions recorded by the registration gateway.
const (
	ActionSubmitRegistration = "submit_registration"
	ActionRateLimited        = "rate_limited"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        string
	Timestamp time.Time
	Action    string
	Username  string
	Email     string
	Device    string
	ClientIP  string
	Outcome   string
	Reason    string
}
