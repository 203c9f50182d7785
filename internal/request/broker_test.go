package request

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/kapu/chess-arena-go/pkg/wire"
)

type fakeNotifier struct {
	mu     sync.Mutex
	frames map[string][][]byte
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{frames: make(map[string][][]byte)}
}

func (f *fakeNotifier) Send(_ context.Context, identity string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames[identity] = append(f.frames[identity], append([]byte(nil), data...))
	return nil
}

func (f *fakeNotifier) last(identity string) *wire.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	frames := f.frames[identity]
	if len(frames) == 0 {
		return nil
	}
	env, err := wire.Decode(frames[len(frames)-1])
	if err != nil {
		return nil
	}
	return env
}

type startRecorder struct {
	mu    sync.Mutex
	calls [][3]string
	err   error
}

func (r *startRecorder) start(whiteID, blackID, gameID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.calls = append(r.calls, [3]string{whiteID, blackID, gameID})
	return nil
}

func newTestBroker(t *testing.T) (*Broker, *fakeNotifier, *startRecorder) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	notifier := newFakeNotifier()
	rec := &startRecorder{}
	b := NewBroker(NewStore(rdb), notifier, rec.start, nil, nil)
	return b, notifier, rec
}

func TestCreateNotifiesTarget(t *testing.T) {
	b, notifier, _ := newTestBroker(t)
	ctx := context.Background()

	req, err := b.Create(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if req.GameID == "" || req.Status != StatusPending {
		t.Fatalf("unexpected request: %+v", req)
	}

	env := notifier.last("bob")
	if env == nil || env.Type != wire.TypeSendGameRequest {
		t.Fatalf("expected send_game_request to bob, got %+v", env)
	}
	var p wire.GameRequest
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.From != "alice" || p.GameID != req.GameID {
		t.Fatalf("unexpected payload: %+v", p)
	}
}

func TestCreateSelfChallengeRejected(t *testing.T) {
	b, _, _ := newTestBroker(t)
	if _, err := b.Create(context.Background(), "alice", "alice"); !errors.Is(err, ErrInvalidTarget) {
		t.Fatalf("expected ErrInvalidTarget, got %v", err)
	}
}

func TestCreateDuplicatePairBlocked(t *testing.T) {
	b, _, _ := newTestBroker(t)
	ctx := context.Background()

	if _, err := b.Create(ctx, "alice", "bob"); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	// Same direction and the reverse direction are both held by the pending
	// request.
	if _, err := b.Create(ctx, "alice", "bob"); !errors.Is(err, ErrRequestPending) {
		t.Fatalf("expected ErrRequestPending, got %v", err)
	}
	if _, err := b.Create(ctx, "bob", "alice"); !errors.Is(err, ErrRequestPending) {
		t.Fatalf("expected ErrRequestPending on reverse pair, got %v", err)
	}
	// A different pair is unaffected.
	if _, err := b.Create(ctx, "alice", "carol"); err != nil {
		t.Fatalf("Create for other pair: %v", err)
	}
}

func TestAcceptStartsGameInviterWhite(t *testing.T) {
	b, notifier, rec := newTestBroker(t)
	ctx := context.Background()

	req, err := b.Create(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	resolved, err := b.Respond(ctx, req.GameID, "bob", ActionAccept)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if resolved.Status != StatusAccepted || resolved.ResolvedAt == nil {
		t.Fatalf("unexpected resolved request: %+v", resolved)
	}

	rec.mu.Lock()
	calls := rec.calls
	rec.mu.Unlock()
	if len(calls) != 1 {
		t.Fatalf("expected 1 start call, got %d", len(calls))
	}
	if calls[0] != [3]string{"alice", "bob", req.GameID} {
		t.Fatalf("unexpected start call: %v", calls[0])
	}

	// The inviter is told the invitation was taken and that they play white.
	env := notifier.last("alice")
	if env == nil || env.Type != wire.TypeAcceptGameRequest {
		t.Fatalf("expected accept_game_request to alice, got %+v", env)
	}
	var acc wire.AcceptGameRequest
	if err := json.Unmarshal(env.Payload, &acc); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if acc.Color != "white" || acc.GameID != req.GameID {
		t.Fatalf("unexpected accept payload: %+v", acc)
	}

	// The pair slot is free again after resolution.
	if _, err := b.Create(ctx, "bob", "alice"); err != nil {
		t.Fatalf("Create after resolution: %v", err)
	}
}

func TestRejectNotifiesInviter(t *testing.T) {
	b, notifier, rec := newTestBroker(t)
	ctx := context.Background()

	req, err := b.Create(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := b.Respond(ctx, req.GameID, "bob", ActionReject); err != nil {
		t.Fatalf("Respond: %v", err)
	}

	env := notifier.last("alice")
	if env == nil || env.Type != wire.TypeRequestRejected {
		t.Fatalf("expected game_request_rejected to alice, got %+v", env)
	}
	rec.mu.Lock()
	started := len(rec.calls)
	rec.mu.Unlock()
	if started != 0 {
		t.Fatalf("reject must not start a game")
	}
}

func TestRespondGuards(t *testing.T) {
	b, _, _ := newTestBroker(t)
	ctx := context.Background()

	req, err := b.Create(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Only the invited identity may respond.
	if _, err := b.Respond(ctx, req.GameID, "carol", ActionAccept); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound for wrong responder, got %v", err)
	}
	if _, err := b.Respond(ctx, "no-such-id", "bob", ActionAccept); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound for unknown id, got %v", err)
	}
	if _, err := b.Respond(ctx, req.GameID, "bob", Action("maybe")); !errors.Is(err, ErrInvalidArgs) {
		t.Fatalf("expected ErrInvalidArgs for bad action, got %v", err)
	}

	// Resolving twice fails: the request left Pending.
	if _, err := b.Respond(ctx, req.GameID, "bob", ActionAccept); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if _, err := b.Respond(ctx, req.GameID, "bob", ActionAccept); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound on second respond, got %v", err)
	}
}
