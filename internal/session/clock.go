package session

import (
	"sync"
	"time"
)

// TurnClock schedules one forfeiture callback per session. It holds only
// session ids, never session state: a timer firing after the session has
// completed is harmless because ForceTimeout checks the Active guard.
type TurnClock struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	expired func(sessionID string)
}

// NewTurnClock creates a clock delivering expirations to expired. The
// callback runs on the timer goroutine.
func NewTurnClock(expired func(sessionID string)) *TurnClock {
	return &TurnClock{
		timers:  make(map[string]*time.Timer),
		expired: expired,
	}
}

// Start schedules the forfeiture callback for sessionID after d. Any pending
// timer for the same session is replaced.
func (c *TurnClock) Start(sessionID string, d time.Duration) {
	c.mu.Lock()
	if t, ok := c.timers[sessionID]; ok {
		t.Stop()
	}
	c.timers[sessionID] = time.AfterFunc(d, func() { c.fire(sessionID) })
	c.mu.Unlock()
}

// Reset replaces the pending timer; called on every accepted move.
func (c *TurnClock) Reset(sessionID string, d time.Duration) {
	c.Start(sessionID, d)
}

// Cancel is best-effort: a timer that already fired cannot be un-fired, the
// callback's Active-state guard is what makes that race safe. Idempotent.
func (c *TurnClock) Cancel(sessionID string) {
	c.mu.Lock()
	if t, ok := c.timers[sessionID]; ok {
		t.Stop()
		delete(c.timers, sessionID)
	}
	c.mu.Unlock()
}

func (c *TurnClock) fire(sessionID string) {
	c.mu.Lock()
	delete(c.timers, sessionID)
	c.mu.Unlock()
	c.expired(sessionID)
}
