package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alfredjeanlab/lgates/internal/metrics"
	"github.com/alfredjeanlab/lgates/internal/model"
	"github.com/alfredjeanlab/lgates/internal/store/memory"
)

// Seeded users, one per role.
const (
	userCT  = "alice"
	userSTO = "sam"
	userSLT = "lee"
)

var testNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

type publishedEvent struct {
	topic string
	event any
}

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{topic, event})
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.topic
	}
	return out
}

type testEnv struct {
	srv   *GatesServer
	store *memory.Store
	pub   *recordingPublisher
	h     http.Handler
}

// newTestServer returns a server over a memory store seeded with one user
// per role and the initiative INIT-1. Auth runs in header mode.
func newTestServer(t *testing.T) *testEnv {
	t.Helper()
	ms := memory.New()
	ms.SetClock(func() time.Time { return testNow })
	pub := &recordingPublisher{}
	s := NewGatesServer(ms, pub, metrics.NewRegistry())
	s.SetClock(func() time.Time { return testNow })

	ctx := context.Background()
	for uid, role := range map[string]model.Role{
		userCT:  model.RoleControlTower,
		userSTO: model.RoleSTO,
		userSLT: model.RoleSLT,
	} {
		if err := ms.SetUserRole(ctx, &model.UserRole{UserID: uid, Role: role}); err != nil {
			t.Fatalf("seed role %s: %v", uid, err)
		}
	}
	if err := ms.CreateInitiative(ctx, &model.Initiative{ID: "INIT-1", Name: "Claims modernisation", ValueStream: "claims"}); err != nil {
		t.Fatalf("seed initiative: %v", err)
	}

	return &testEnv{srv: s, store: ms, pub: pub, h: s.NewHTTPHandler(NewAuthenticator("", ""))}
}

// doJSON performs an HTTP request as user with an optional JSON body and
// returns the recorder. An empty user sends no identity.
func doJSON(t *testing.T, handler http.Handler, user, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		var b []byte
		if raw, ok := body.(string); ok {
			b = []byte(raw)
		} else {
			b, _ = json.Marshal(body)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if user != "" {
		req.Header.Set(UserIDHeader, user)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// requireStatus asserts the recorder has the expected HTTP status code.
func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, code int) {
	t.Helper()
	if rec.Code != code {
		t.Fatalf("expected status %d, got %d; body: %s", code, rec.Code, rec.Body.String())
	}
}

// decodeJSON decodes the recorder's response body into v.
func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestHandleHealth(t *testing.T) {
	env := newTestServer(t)
	rec := doJSON(t, env.h, "", "GET", "/api/health", nil)
	requireStatus(t, rec, http.StatusOK)

	var body map[string]string
	decodeJSON(t, rec, &body)
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", body)
	}
}

func TestHandleHTTPErrors(t *testing.T) {
	for _, tc := range []struct {
		name      string
		user      string
		method    string
		path      string
		body      any
		code      int
		wantError string
	}{
		{"NoIdentity", "", "GET", "/api/initiatives", nil, 401, "missing X-User-ID header"},
		{"GetInitiative/NotFound", userSLT, "GET", "/api/initiatives/nope", nil, 404, "initiative not found"},
		{"DeleteInitiative/NotFound", userCT, "DELETE", "/api/initiatives/nope", nil, 404, "initiative not found"},
		{"DeleteInitiative/Forbidden", userSTO, "DELETE", "/api/initiatives/INIT-1", nil, 403, ""},
		{"CreateInitiative/MissingName", userCT, "POST", "/api/initiatives", map[string]any{"id": "X"}, 400, ""},
		{"CreateInitiative/Duplicate", userCT, "POST", "/api/initiatives", map[string]any{"id": "INIT-1", "name": "dup"}, 409, ""},
		{"CreateInitiative/BadJSON", userCT, "POST", "/api/initiatives", "{", 400, "invalid JSON body"},
		{"ListInitiatives/BadLimit", userSLT, "GET", "/api/initiatives?limit=x", nil, 400, ""},
		{"GetStatus/NotFound", userSLT, "GET", "/api/initiatives/nope/status", nil, 404, "initiative not found"},
		{"SetStatus/NotFound", userSTO, "PUT", "/api/initiatives/nope/status", map[string]any{"costStatus": "red"}, 404, ""},
		{"SetStatus/BadEnum", userSTO, "PUT", "/api/initiatives/INIT-1/status", map[string]any{"costStatus": "amber"}, 400, ""},
		{"SetStatus/Empty", userSTO, "PUT", "/api/initiatives/INIT-1/status", map[string]any{}, 400, ""},
		{"SetStatus/Forbidden", userSLT, "PUT", "/api/initiatives/INIT-1/status", map[string]any{"costStatus": "red"}, 403, ""},
		{"GetForm/BadGate", userSLT, "GET", "/api/initiatives/INIT-1/forms/L9", nil, 400, ""},
		{"GetForm/NotFound", userSLT, "GET", "/api/initiatives/nope/forms/L0", nil, 404, "initiative not found"},
		{"ListForms/NotFound", userSLT, "GET", "/api/initiatives/nope/forms", nil, 404, ""},
		{"SaveForm/NoVersion", userSTO, "PUT", "/api/initiatives/INIT-1/forms/L0", map[string]any{"formData": map[string]any{}}, 400, "version is required (body or If-Match header)"},
		{"SaveForm/BadStatus", userSTO, "PUT", "/api/initiatives/INIT-1/forms/L0", map[string]any{"status": "done", "version": 0}, 400, ""},
		{"SaveForm/ApprovedStatus", userCT, "PUT", "/api/initiatives/INIT-1/forms/L0", map[string]any{"status": "approved", "version": 0}, 400, "use the /approve endpoint to approve a form"},
		{"SaveForm/NotObject", userSTO, "PUT", "/api/initiatives/INIT-1/forms/L0", map[string]any{"formData": []int{1}, "version": 0}, 400, ""},
		{"SaveForm/UnknownInitiative", userSTO, "PUT", "/api/initiatives/nope/forms/L0", map[string]any{"version": 0}, 404, ""},
		{"SaveForm/SLT", userSLT, "PUT", "/api/initiatives/INIT-1/forms/L0", map[string]any{"version": 0}, 403, ""},
		{"Approve/NotSubmitted", userCT, "PUT", "/api/initiatives/INIT-1/forms/L0/approve", nil, 409, ""},
		{"Approve/STO", userSTO, "PUT", "/api/initiatives/INIT-1/forms/L0/approve", nil, 403, ""},
		{"RequestChange/NotApproved", userSTO, "PUT", "/api/initiatives/INIT-1/forms/L0/request-change", map[string]any{"reason": "x"}, 409, ""},
		{"Requirements/BadGate", userSLT, "GET", "/api/gates/L7/requirements", nil, 400, ""},
		{"GetConfig/NotFound", userSLT, "GET", "/api/configs/view:nonexistent", nil, 404, "config not found"},
		{"DeleteConfig/NotFound", userCT, "DELETE", "/api/configs/view:nonexistent", nil, 404, ""},
		{"SetConfig/Forbidden", userSTO, "PUT", "/api/configs/view:x", map[string]any{"value": 1}, 403, ""},
		{"SetConfig/BadKey", userCT, "PUT", "/api/configs/nocolon", map[string]any{"value": 1}, 400, ""},
		{"SetConfig/BadGateKey", userCT, "PUT", "/api/configs/gate:L9", map[string]any{"value": map[string]any{}}, 400, ""},
		{"SetRole/Forbidden", userSTO, "PUT", "/api/user/bob/role", map[string]any{"role": "sto"}, 403, ""},
		{"SetRole/BadRole", userCT, "PUT", "/api/user/bob/role", map[string]any{"role": "admin"}, 400, ""},
		{"ListUsers/Forbidden", userSLT, "GET", "/api/users", nil, 403, ""},
		{"Events/NotFound", userSLT, "GET", "/api/initiatives/nope/events", nil, 404, ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestServer(t)
			rec := doJSON(t, env.h, tc.user, tc.method, tc.path, tc.body)
			requireStatus(t, rec, tc.code)
			var body map[string]string
			decodeJSON(t, rec, &body)
			if body["error"] == "" {
				t.Fatalf("expected an error message, got %v", body)
			}
			if tc.wantError != "" && body["error"] != tc.wantError {
				t.Fatalf("expected error %q, got %q", tc.wantError, body["error"])
			}
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	requireStatus(t, rec, http.StatusInternalServerError)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestServer(t)
	requireStatus(t, doJSON(t, env.h, userSLT, "GET", "/api/initiatives/INIT-1", nil), http.StatusOK)

	rec := doJSON(t, env.h, "", "GET", "/metrics", nil)
	requireStatus(t, rec, http.StatusOK)
	if !bytes.Contains(rec.Body.Bytes(), []byte(`lgates_http_requests_total{code="200",method="GET",route="GET /api/initiatives/{id}"} 1`)) {
		t.Fatalf("metrics missing request counter:\n%s", rec.Body.String())
	}
}
