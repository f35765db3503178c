package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPProber_Success(t *testing.T) {
	var method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := &HTTPProber{URL: srv.URL}
	if err := p.Probe(context.Background()); err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if method != http.MethodHead {
		t.Errorf("method = %s, want HEAD", method)
	}
}

func TestHTTPProber_CustomMethod(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_, _ = w.Write([]byte("OK"))
	}))
	defer srv.Close()

	p := &HTTPProber{URL: srv.URL, Method: http.MethodGet, Client: srv.Client()}
	if err := p.Probe(context.Background()); err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
}

func TestHTTPProber_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := (&HTTPProber{URL: srv.URL}).Probe(context.Background())
	if !errors.Is(err, ErrProbeFailed) {
		t.Errorf("Probe() error = %v, want ErrProbeFailed", err)
	}
}

func TestHTTPProber_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if err := (&HTTPProber{URL: url}).Probe(context.Background()); err == nil {
		t.Error("Probe() against a closed server should fail")
	}
}

func TestHTTPProber_InvalidURL(t *testing.T) {
	if err := (&HTTPProber{URL: "://bad"}).Probe(context.Background()); err == nil {
		t.Error("Probe() with an invalid URL should fail")
	}
}

func TestProberFunc(t *testing.T) {
	want := errors.New("down")
	p := ProberFunc(func(ctx context.Context) error { return want })
	if err := p.Probe(context.Background()); err != want {
		t.Errorf("Probe() = %v, want %v", err, want)
	}
}
