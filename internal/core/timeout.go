package core

import (
	"sync"
	"time"
)

// TimeoutSupervisor reclaims calls stuck in the initiated state. At most one
// timer is armed per call id; Start replaces any prior timer and Cancel is a
// safe no-op after the timer already fired.
type TimeoutSupervisor struct {
	mu       sync.Mutex
	timers   map[CallID]*time.Timer
	ttl      time.Duration
	onExpire func(CallID)
}

// NewTimeoutSupervisor builds a supervisor firing onExpire after ttl.
// The callback must re-check session status itself; the supervisor only
// guarantees the timer bookkeeping.
func NewTimeoutSupervisor(ttl time.Duration, onExpire func(CallID)) *TimeoutSupervisor {
	return &TimeoutSupervisor{
		timers:   make(map[CallID]*time.Timer),
		ttl:      ttl,
		onExpire: onExpire,
	}
}

// Start arms the countdown for a call id, replacing any existing timer.
func (t *TimeoutSupervisor) Start(id CallID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.timers[id]; ok {
		prev.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(t.ttl, func() {
		t.fire(id, timer)
	})
	t.timers[id] = timer
}

// Cancel disarms the timer for a call id. Idempotent.
func (t *TimeoutSupervisor) Cancel(id CallID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, ok := t.timers[id]; ok {
		timer.Stop()
		delete(t.timers, id)
	}
}

func (t *TimeoutSupervisor) fire(id CallID, timer *time.Timer) {
	t.mu.Lock()
	current, ok := t.timers[id]
	if !ok || current != timer {
		// Replaced or cancelled while we waited on the lock.
		t.mu.Unlock()
		return
	}
	delete(t.timers, id)
	t.mu.Unlock()

	t.onExpire(id)
}

// Armed reports whether a timer is currently armed for the call id.
func (t *TimeoutSupervisor) Armed(id CallID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.timers[id]
	return ok
}

// Shutdown stops all outstanding timers.
func (t *TimeoutSupervisor) Shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
}
