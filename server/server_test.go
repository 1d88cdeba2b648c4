package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/UseLizard/NocturneCompanion/session"
	"github.com/UseLizard/NocturneCompanion/utils"
)

type stubTransport struct {
	writes [][]byte
}

func (t *stubTransport) Connect() error { return nil }

func (t *stubTransport) Read(string) ([]byte, error) {
	return []byte(`{"device":"NocturneCompanion"}`), nil
}

func (t *stubTransport) Write(_ string, payload []byte) error {
	t.writes = append(t.writes, payload)
	return nil
}

func (t *stubTransport) Subscribe(string, func([]byte, time.Time)) error { return nil }

func (t *stubTransport) Disconnect() error { return nil }

func newTestServer(t *testing.T) (*Server, *stubTransport, *session.Session) {
	t.Helper()
	transport := &stubTransport{}
	hub := utils.NewWebSocketHub()
	sess := session.New(transport, hub)
	return NewServer(sess, hub, ":0"), transport, sess
}

func TestStatusEndpoint(t *testing.T) {
	srv, _, sess := newTestServer(t)
	if err := sess.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest("GET", "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var resp StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if resp.State != "active" {
		t.Errorf("state %q, want active", resp.State)
	}
}

func TestInfoEndpointBeforeLoad(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest("GET", "/info", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status %d, want 404 before the capability probe", rec.Code)
	}
}

func TestInfoEndpointReturnsRawDocument(t *testing.T) {
	srv, _, sess := newTestServer(t)
	if err := sess.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest("GET", "/info", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if rec.Body.String() != `{"device":"NocturneCompanion"}` {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestMediaCommandEndpoints(t *testing.T) {
	srv, transport, sess := newTestServer(t)
	if err := sess.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	paths := []string{"/media/play", "/media/pause", "/media/next", "/media/previous", "/media/seek/5000", "/media/volume/80"}
	for _, path := range paths {
		rec := httptest.NewRecorder()
		srv.router.ServeHTTP(rec, httptest.NewRequest("POST", path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status %d, body %s", path, rec.Code, rec.Body.String())
		}
	}
	if len(transport.writes) != len(paths) {
		t.Errorf("expected %d writes, got %d", len(paths), len(transport.writes))
	}
}

func TestMediaEndpointsRejectGet(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest("GET", "/media/play", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status %d, want 405", rec.Code)
	}
}

func TestVolumeValidationReturns400(t *testing.T) {
	srv, transport, sess := newTestServer(t)
	if err := sess.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	for _, path := range []string{"/media/volume/150", "/media/volume/-1", "/media/seek/-200"} {
		rec := httptest.NewRecorder()
		srv.router.ServeHTTP(rec, httptest.NewRequest("POST", path, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d, want 400", path, rec.Code)
		}
	}
	if len(transport.writes) != 0 {
		t.Errorf("rejected commands reached the transport: %d writes", len(transport.writes))
	}
}

func TestVolumeNonNumericReturns400(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest("POST", "/media/volume/loud", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status %d, want 400", rec.Code)
	}
}
