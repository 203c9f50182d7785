package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/kapu/chess-arena-go/internal/boardimg"
	"github.com/kapu/chess-arena-go/internal/registry"
	"github.com/kapu/chess-arena-go/internal/request"
	"github.com/kapu/chess-arena-go/internal/session"
	"github.com/kapu/chess-arena-go/pkg/wire"
)

type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
}

func (f *fakeConn) Send(_ context.Context, data []byte) error {
	f.mu.Lock()
	f.frames = append(f.frames, append([]byte(nil), data...))
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) Close(string) error { return nil }

func newTestServer(t *testing.T) (*httptest.Server, *session.Store, *registry.Registry) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	reg := registry.New(nil)
	store := session.NewStore(session.Options{MoveTime: time.Hour}, session.NewRulesValidator(), reg, nil, nil, nil)
	t.Cleanup(store.Close)

	broker := request.NewBroker(request.NewStore(rdb), reg, func(w, b, g string) error {
		_, err := store.Create(w, b, g)
		return err
	}, nil, nil)

	api := New(store, broker, reg, boardimg.NewRenderer(), nil)

	r := httptest.NewServer(routerForTest(api))
	t.Cleanup(r.Close)
	return r, store, reg
}

// routerForTest wires the REST routes without the websocket endpoint.
func routerForTest(a *API) http.Handler {
	r := chi.NewRouter()
	r.Post("/game/sendgamerequest", a.SendGameRequest)
	r.Post("/game/handlegamerequest", a.HandleGameRequest)
	r.Post("/notify", a.Notify)
	r.Get("/game/{id}", a.GetGame)
	r.Get("/game/{id}/board.png", a.GetBoardPNG)
	r.Get("/healthz", Healthz)
	return r
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func TestInvitationLifecycleOverHTTP(t *testing.T) {
	srv, store, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/game/sendgamerequest", map[string]string{"from": "alice", "to": "bob"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("sendgamerequest: status %d", resp.StatusCode)
	}
	var created request.GameRequest
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if created.Status != request.StatusPending || created.GameID == "" {
		t.Fatalf("unexpected request: %+v", created)
	}

	// Duplicate pair conflicts while pending.
	resp = postJSON(t, srv.URL+"/game/sendgamerequest", map[string]string{"from": "bob", "to": "alice"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate pair: status %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/game/handlegamerequest", map[string]string{
		"gameId": created.GameID, "from": "alice", "to": "bob", "action": "accept",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("handlegamerequest: status %d", resp.StatusCode)
	}

	if _, err := store.Get(created.GameID); err != nil {
		t.Fatalf("accepted invitation did not start session: %v", err)
	}
}

func TestGetGameAndBoard(t *testing.T) {
	srv, store, _ := newTestServer(t)

	v, err := store.Create("alice", "bob", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.ApplyMove(v.ID, "alice", session.Move{From: "e2", To: "e4"}); err != nil {
		t.Fatalf("ApplyMove: %v", err)
	}

	resp, err := http.Get(srv.URL + "/game/" + v.ID)
	if err != nil {
		t.Fatalf("get game: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get game: status %d", resp.StatusCode)
	}
	var game gameResponse
	if err := json.NewDecoder(resp.Body).Decode(&game); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if game.Turn != "black" || len(game.MovesSAN) != 1 || game.MovesSAN[0] != "e4" {
		t.Fatalf("unexpected game state: %+v", game)
	}

	img, err := http.Get(srv.URL + "/game/" + v.ID + "/board.png")
	if err != nil {
		t.Fatalf("get board: %v", err)
	}
	defer img.Body.Close()
	if img.StatusCode != http.StatusOK {
		t.Fatalf("get board: status %d", img.StatusCode)
	}
	if ct := img.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("unexpected content type %q", ct)
	}

	missing, err := http.Get(srv.URL + "/game/nope")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("missing game: status %d", missing.StatusCode)
	}
}

func TestNotifyDeliversEnvelope(t *testing.T) {
	srv, _, reg := newTestServer(t)

	conn := &fakeConn{}
	reg.Register("alice", conn)

	resp := postJSON(t, srv.URL+"/notify", map[string]any{
		"to": "alice", "type": "announcement", "payload": map[string]string{"msg": "maintenance at noon"},
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("notify: status %d", resp.StatusCode)
	}

	conn.mu.Lock()
	frames := conn.frames
	conn.mu.Unlock()
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	env, err := wire.Decode(frames[0])
	if err != nil || env.Type != "announcement" {
		t.Fatalf("unexpected frame: %+v err=%v", env, err)
	}

	resp = postJSON(t, srv.URL+"/notify", map[string]any{"to": "nobody", "type": "announcement"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("notify offline: status %d", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: status %d", resp.StatusCode)
	}
}
