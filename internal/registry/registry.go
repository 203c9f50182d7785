// Package registry maps authenticated identities to their single live
// transport connection. Delivery is best-effort and at-most-once: a send to
// an absent identity returns ErrNotConnected and the message is dropped.
package registry

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

var ErrNotConnected = errors.New("identity not connected")

// Conn is the transport half the registry needs: an ordered byte-frame sink
// plus a close. Implemented by the coordinator's websocket wrapper.
type Conn interface {
	Send(ctx context.Context, data []byte) error
	Close(reason string) error
}

type Registry struct {
	mu    sync.Mutex
	conns map[string]Conn
	log   *zap.Logger
}

func New(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{conns: make(map[string]Conn), log: log}
}

// Register binds conn to identity, silently retiring any previous connection
// for the same identity. The retired connection receives no further traffic.
func (r *Registry) Register(identity string, conn Conn) {
	r.mu.Lock()
	old := r.conns[identity]
	r.conns[identity] = conn
	r.mu.Unlock()

	if old != nil && old != conn {
		_ = old.Close("replaced by newer connection")
		r.log.Info("connection_replaced", zap.String("identity", identity))
	}
}

// Unregister removes identity's binding only when conn is still the
// registered connection. A replaced connection's deferred unregister must
// not evict its replacement.
func (r *Registry) Unregister(identity string, conn Conn) {
	r.mu.Lock()
	if cur, ok := r.conns[identity]; ok && cur == conn {
		delete(r.conns, identity)
	}
	r.mu.Unlock()
}

// Send delivers data to identity's live connection. ErrNotConnected is a
// routine condition for callers to log, never to propagate as fatal.
func (r *Registry) Send(ctx context.Context, identity string, data []byte) error {
	r.mu.Lock()
	conn := r.conns[identity]
	r.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}
	if err := conn.Send(ctx, data); err != nil {
		r.log.Warn("send_failed", zap.String("identity", identity), zap.Error(err))
		return err
	}
	return nil
}

// Connected reports whether identity currently has a live connection.
func (r *Registry) Connected(identity string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conns[identity] != nil
}

// CloseAll tears down every live connection. Called at service shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := make([]Conn, 0, len(r.conns))
	for id, c := range r.conns {
		conns = append(conns, c)
		delete(r.conns, id)
	}
	r.mu.Unlock()

	for _, c := range conns {
		_ = c.Close("server shutting down")
	}
}
