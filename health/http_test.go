package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLivenessHandler(t *testing.T) {
	for method, wantBody := range map[string]string{http.MethodGet: "OK", http.MethodHead: ""} {
		t.Run(method, func(t *testing.T) {
			rec := httptest.NewRecorder()
			LivenessHandler()(rec, httptest.NewRequest(method, "/healthz", nil))

			if rec.Code != http.StatusOK {
				t.Errorf("code = %d, want 200", rec.Code)
			}
			if got := rec.Body.String(); got != wantBody {
				t.Errorf("body = %q, want %q", got, wantBody)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "text/plain" {
				t.Errorf("Content-Type = %q, want text/plain", ct)
			}
		})
	}
}

func TestLivenessHandler_SatisfiesHTTPProber(t *testing.T) {
	srv := httptest.NewServer(LivenessHandler())
	defer srv.Close()

	if err := (&HTTPProber{URL: srv.URL}).Probe(context.Background()); err != nil {
		t.Errorf("Probe() error = %v", err)
	}
}

func TestStatusHandler(t *testing.T) {
	tests := []struct {
		name      string
		online    bool
		wantCode  int
		wantState string
		wantError bool
	}{
		{"online", true, http.StatusOK, "online", false},
		{"offline", false, http.StatusServiceUnavailable, "offline", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(TrackerConfig{})
			defer tr.Close()
			tr.SetConnectivity(context.Background(), tt.online)

			handler := StatusHandler(tr, func() any { return map[string]int{"queue_size": 3} })
			rec := httptest.NewRecorder()
			handler(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("Status = %d, want %d", rec.Code, tt.wantCode)
			}
			if rec.Header().Get("Content-Type") != "application/json" {
				t.Errorf("Content-Type = %v", rec.Header().Get("Content-Type"))
			}

			var resp struct {
				StatusResponse
				Queue map[string]int `json:"queue"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("Failed to parse response: %v", err)
			}
			if resp.Status != tt.wantState {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantState)
			}
			if resp.Reachable != tt.online {
				t.Errorf("reachable = %v, want %v", resp.Reachable, tt.online)
			}
			if (resp.Error != "") != tt.wantError {
				t.Errorf("error = %q", resp.Error)
			}
			if resp.Queue["queue_size"] != 3 {
				t.Errorf("queue = %v", resp.Queue)
			}
		})
	}
}

func TestStatusHandler_UnknownIsOK(t *testing.T) {
	tr := NewTracker(TrackerConfig{})
	defer tr.Close()

	rec := httptest.NewRecorder()
	StatusHandler(tr, nil)(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Status = %d, want 200", rec.Code)
	}
}

func TestRegisterHandlers(t *testing.T) {
	tr := NewTracker(TrackerConfig{})
	defer tr.Close()

	mux := http.NewServeMux()
	RegisterHandlers(mux, tr, nil)

	for _, path := range []string{"/healthz", "/status"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: Status = %d, want 200", path, rec.Code)
		}
	}
}
