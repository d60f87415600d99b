package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareLabelsByPattern(t *testing.T) {
	r := NewRegistry()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/initiatives/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	h := r.Middleware(mux)

	for _, path := range []string{"/api/initiatives/a", "/api/initiatives/b"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
	}

	got := testutil.ToFloat64(r.requests.WithLabelValues("GET /api/initiatives/{id}", "GET", "404"))
	if got != 2 {
		t.Fatalf("requests = %v, want 2", got)
	}
}

func TestMiddlewareUnmatched(t *testing.T) {
	r := NewRegistry()
	h := r.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/x", nil))

	if got := testutil.ToFloat64(r.requests.WithLabelValues("unmatched", "POST", "200")); got != 1 {
		t.Fatalf("requests = %v, want 1", got)
	}
}

func TestObserveTransitionAndStatus(t *testing.T) {
	r := NewRegistry()
	r.ObserveTransition("submit", "L3", "ok")
	r.ObserveTransition("submit", "L3", "ok")
	r.ObserveTransition("approve", "L3", "forbidden")
	r.ObserveStatus("budget", "red")

	if got := testutil.ToFloat64(r.transitions.WithLabelValues("submit", "L3", "ok")); got != 2 {
		t.Errorf("submit ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.transitions.WithLabelValues("approve", "L3", "forbidden")); got != 1 {
		t.Errorf("approve forbidden = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.statuses.WithLabelValues("budget", "red")); got != 1 {
		t.Errorf("budget red = %v, want 1", got)
	}
}

func TestHandlerExposition(t *testing.T) {
	r := NewRegistry()
	r.ObserveTransition("approve", "L1", "ok")

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `lgates_form_transitions_total{action="approve",gate="L1",outcome="ok"} 1`) {
		t.Fatalf("exposition missing transition counter:\n%s", body)
	}
}
