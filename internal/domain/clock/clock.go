// Package clock provides the session-wide monotonic time reference.
//
// A SessionClock is created once at session start and handed to every
// component; no component reads ambient wall-clock time for data stamps.
// All ink and external timestamps are expressed in seconds since the
// clock's epoch after alignment.
package clock

import (
	"sync"
	"time"
)

// SessionClock is a monotonic reference established at session start.
// It is frozen at session stop and never reused across sessions.
type SessionClock struct {
	mu       sync.RWMutex
	epoch    time.Time
	frozen   bool
	frozenAt float64
}

// NewSessionClock creates a clock whose epoch is now.
func NewSessionClock() *SessionClock {
	return &SessionClock{epoch: time.Now()}
}

// Now returns seconds elapsed since the session epoch. After Freeze it
// returns the freeze time forever.
func (c *SessionClock) Now() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.frozen {
		return c.frozenAt
	}
	return time.Since(c.epoch).Seconds()
}

// Freeze stops the clock at the current reading. Idempotent.
func (c *SessionClock) Freeze() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen {
		return
	}
	c.frozenAt = time.Since(c.epoch).Seconds()
	c.frozen = true
}

// Frozen reports whether the clock has been stopped.
func (c *SessionClock) Frozen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frozen
}

// Epoch returns the wall-clock time the session started. Used only for
// log metadata, never for data timestamps.
func (c *SessionClock) Epoch() time.Time {
	return c.epoch
}
