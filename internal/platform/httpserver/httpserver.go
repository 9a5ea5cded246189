// Package httpserver builds the gateway's http.Server with its timeout
// policy in one place.
package httpserver

import (
	"net/http"
	"time"
)

// Registration requests are small JSON bodies, but the simulated backend
// injects up to a few hundred milliseconds of latency per call, so the
// write timeout leaves room for a rate-limited burst to drain.
const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 2 * time.Minute
)

// New builds the server for the registration API.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}
