package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"lucky/internal/apiclient"
	"lucky/internal/config"
	"lucky/internal/envelope"
	"lucky/internal/session"
)

func newTestServer(t *testing.T, dataDir string, backend http.Handler) *server {
	t.Helper()
	codec, err := envelope.NewCodec([]byte("0123456789abcdef0123456789abcdef"), []byte("abcdef9876543210"))
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	api := httptest.NewServer(backend)
	t.Cleanup(api.Close)
	cfg := config.EmbedConfig{Addr: ":0", APIBaseURL: api.URL, DataDir: dataDir}
	return newServer(cfg, apiclient.New(api.URL, codec), nil)
}

func saveTestSession(t *testing.T, dir, token string) {
	t.Helper()
	err := session.SaveSnapshot(dir, session.Snapshot{
		Identity:  &session.Identity{ID: 1, Name: "alice", Token: token},
		LockToken: "lock-1",
	})
	if err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, t.TempDir(), http.NotFoundHandler())
	rec := httptest.NewRecorder()
	srv.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestPlayWithoutSessionIsUnauthorized(t *testing.T) {
	srv := newTestServer(t, t.TempDir(), http.NotFoundHandler())
	rec := httptest.NewRecorder()
	srv.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/play/42", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestPlayRejectsBadGameID(t *testing.T) {
	srv := newTestServer(t, t.TempDir(), http.NotFoundHandler())
	rec := httptest.NewRecorder()
	srv.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/play/zero", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPlayRendersIframe(t *testing.T) {
	codec, err := envelope.NewCodec([]byte("0123456789abcdef0123456789abcdef"), []byte("abcdef9876543210"))
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/game_init" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["token"] != "tok-1" || body["gameId"] != float64(42) {
			t.Errorf("bad request body: %v", body)
		}
		raw, _ := json.Marshal(map[string]any{"url": "https://provider.example/launch/42"})
		data, err := codec.Encrypt(raw)
		if err != nil {
			t.Fatalf("encrypt: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[string]any{"errorCode": 0, "msg": "ok", "mess": ""},
			"data":   data,
		})
	})

	dir := t.TempDir()
	saveTestSession(t, dir, "tok-1")
	srv := newTestServer(t, dir, backend)

	rec := httptest.NewRecorder()
	srv.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/play/42", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	page, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(page), `src="https://provider.example/launch/42"`) {
		t.Fatalf("iframe src missing:\n%s", page)
	}
}
