package server

import (
	"encoding/json"
	"net/http"

	"github.com/onnwee/standup-bot/standup"
)

// Handlers serves the health and status endpoints.
type Handlers struct {
	status StatusSource
}

// HandleHealthz responds to liveness probes. The process is alive for as
// long as it answers.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleStatus returns the latest session snapshot as JSON. It reports 503
// once the session has disconnected so probes stop routing to a finished run.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snap := h.status.Snapshot()
	code := http.StatusOK
	if snap.State == standup.StateDisconnected.String() {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(snap)
}
