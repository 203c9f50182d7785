// Package match implements quick-match pairing: a FIFO queue of identities
// waiting for an anonymous opponent. The oldest waiter is paired with each
// new arrival and plays white.
package match

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// PairFunc receives the two matched identities. It runs outside the queue
// lock, so it may synchronously create the session and push notifications.
type PairFunc func(white, black string)

type entry struct {
	identity   string
	enqueuedAt time.Time
}

type Queue struct {
	mu      sync.Mutex
	waiting []entry
	pair    PairFunc
	log     *zap.Logger
}

func NewQueue(pair PairFunc, log *zap.Logger) *Queue {
	if log == nil {
		log = zap.NewNop()
	}
	return &Queue{pair: pair, log: log}
}

// Enqueue adds identity to the queue or, when someone is already waiting,
// removes the head and pairs it with identity. A second Enqueue from an
// already-queued identity is a no-op; the returned flag reports whether the
// caller is (still) waiting.
func (q *Queue) Enqueue(identity string) (waiting bool) {
	q.mu.Lock()
	for _, e := range q.waiting {
		if e.identity == identity {
			q.mu.Unlock()
			return true
		}
	}
	if len(q.waiting) > 0 {
		head := q.waiting[0]
		q.waiting = q.waiting[1:]
		q.mu.Unlock()
		q.log.Info("match_paired",
			zap.String("white", head.identity),
			zap.String("black", identity),
			zap.Duration("waited", time.Since(head.enqueuedAt)),
		)
		q.pair(head.identity, identity)
		return false
	}
	q.waiting = append(q.waiting, entry{identity: identity, enqueuedAt: time.Now()})
	q.mu.Unlock()
	q.log.Info("match_enqueued", zap.String("identity", identity))
	return true
}

// Remove takes identity out of the queue. Idempotent; no-op if absent.
func (q *Queue) Remove(identity string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.waiting {
		if e.identity == identity {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			return
		}
	}
}

// Waiting reports whether identity is currently queued.
func (q *Queue) Waiting(identity string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.waiting {
		if e.identity == identity {
			return true
		}
	}
	return false
}

// Len returns the number of queued identities.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}
