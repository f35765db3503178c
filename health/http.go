package health

import (
	"encoding/json"
	"net/http"
	"time"
)

// LivenessHandler returns an HTTP handler for liveness probes. It answers
// immediately and is the contract HTTPProber expects from a backend.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			_, _ = w.Write([]byte("OK"))
		}
	}
}

// StatusResponse is the JSON body served by StatusHandler.
type StatusResponse struct {
	Status    string `json:"status"`
	Reachable bool   `json:"reachable"`
	Latency   string `json:"latency,omitempty"`
	Error     string `json:"error,omitempty"`
	CheckedAt string `json:"checked_at"`
	Since     string `json:"since"`
	Queue     any    `json:"queue,omitempty"`
}

// StatsFunc supplies extra state, such as queue statistics, for the status
// endpoint.
type StatsFunc func() any

// StatusHandler serves the tracker snapshot as JSON. The response code is
// 200 while the backend is reachable or not yet known, 503 when offline.
func StatusHandler(t *Tracker, stats StatsFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := t.Snapshot()

		response := StatusResponse{
			Status:    snap.Status.String(),
			Reachable: snap.Status.Reachable(),
			CheckedAt: snap.CheckedAt.UTC().Format(time.RFC3339),
			Since:     snap.Since.UTC().Format(time.RFC3339),
		}
		if snap.Latency > 0 {
			response.Latency = snap.Latency.String()
		}
		if snap.Err != nil {
			response.Error = snap.Err.Error()
		}
		if stats != nil {
			response.Queue = stats()
		}

		w.Header().Set("Content-Type", "application/json")
		if snap.Status == StatusOffline {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		_ = json.NewEncoder(w).Encode(response)
	}
}

// RegisterHandlers registers the liveness and status handlers on mux.
func RegisterHandlers(mux *http.ServeMux, t *Tracker, stats StatsFunc) {
	mux.HandleFunc("/healthz", LivenessHandler())
	mux.HandleFunc("/status", StatusHandler(t, stats))
}
