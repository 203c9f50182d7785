package registry

import (
	"context"
	"testing"
)

type fakeConn struct {
	sent   [][]byte
	closed bool
	reason string
}

func (f *fakeConn) Send(_ context.Context, data []byte) error {
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeConn) Close(reason string) error {
	f.closed = true
	f.reason = reason
	return nil
}

func TestRegisterReplacesAndClosesOld(t *testing.T) {
	r := New(nil)
	old := &fakeConn{}
	replacement := &fakeConn{}

	r.Register("p1@example.com", old)
	r.Register("p1@example.com", replacement)

	if !old.closed {
		t.Fatalf("expected old connection to be closed on replacement")
	}
	if err := r.Send(context.Background(), "p1@example.com", []byte("x")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(replacement.sent) != 1 || len(old.sent) != 0 {
		t.Fatalf("traffic went to the wrong connection: new=%d old=%d", len(replacement.sent), len(old.sent))
	}
}

func TestStaleUnregisterKeepsReplacement(t *testing.T) {
	r := New(nil)
	old := &fakeConn{}
	replacement := &fakeConn{}

	r.Register("p1@example.com", old)
	r.Register("p1@example.com", replacement)
	// The old connection's read loop exits and runs its deferred unregister.
	r.Unregister("p1@example.com", old)

	if !r.Connected("p1@example.com") {
		t.Fatalf("replacement connection was evicted by stale unregister")
	}
}

func TestSendNotConnected(t *testing.T) {
	r := New(nil)
	if err := r.Send(context.Background(), "ghost@example.com", []byte("x")); err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestCloseAll(t *testing.T) {
	r := New(nil)
	a, b := &fakeConn{}, &fakeConn{}
	r.Register("a@example.com", a)
	r.Register("b@example.com", b)

	r.CloseAll()

	if !a.closed || !b.closed {
		t.Fatalf("expected all connections closed")
	}
	if r.Connected("a@example.com") {
		t.Fatalf("registry should be empty after CloseAll")
	}
}
