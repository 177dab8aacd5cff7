// Package health provides readiness state tracking and HTTP health check
// handlers for the HTTP transport.
package health

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

// State constants for the readiness state machine.
const (
	stateStarting int32 = iota
	stateReady
	stateDraining
)

// Checker tracks the readiness state of the server and reports the number
// of open database connections. Safe for concurrent use.
type Checker struct {
	state       atomic.Int32
	connections func() int
}

// NewChecker creates a Checker in the Starting state. connections supplies
// the current open-connection count for health responses; nil reports zero.
func NewChecker(connections func() int) *Checker {
	if connections == nil {
		connections = func() int { return 0 }
	}
	return &Checker{connections: connections}
}

// SetReady transitions to the Ready state.
func (c *Checker) SetReady() {
	c.state.Store(stateReady)
}

// SetDraining transitions to the Draining state. Used during shutdown while
// connections are being released.
func (c *Checker) SetDraining() {
	c.state.Store(stateDraining)
}

// IsReady returns true when the state is Ready.
func (c *Checker) IsReady() bool {
	return c.state.Load() == stateReady
}

// State returns the current state as a human-readable string.
func (c *Checker) State() string {
	switch c.state.Load() {
	case stateReady:
		return "ready"
	case stateDraining:
		return "draining"
	default:
		return "starting"
	}
}

// healthResponse is the JSON body returned by health endpoints.
type healthResponse struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
}

// LivenessHandler responds 200 OK while the process is alive.
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Connections: c.connections()})
	}
}

// ReadinessHandler responds 200 when ready and 503 when starting or
// draining.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		code := http.StatusOK
		if !c.IsReady() {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, healthResponse{Status: c.State(), Connections: c.connections()})
	}
}

func writeJSON(w http.ResponseWriter, code int, v healthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
