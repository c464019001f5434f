package notify

import (
	"sync"
	"time"
)

// State of a displayed Toast.
type State int

const (
	StateIdle      State = iota // displayed, waiting for manual dismissal
	StateScheduled              // displayed, auto-dismiss timer pending
	StateDismissed              // OnDismiss invoked
	StateClosed                 // removed without dismissal, OnDismiss never invoked
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScheduled:
		return "scheduled"
	case StateDismissed:
		return "dismissed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type timer interface {
	Stop() bool
}

var afterFunc = func(d time.Duration, f func()) timer { return time.AfterFunc(d, f) } // mockable

// Toast is a displayed Notification.
type Toast struct {
	n Notification

	mu    sync.Mutex
	state State
	tm    timer
	gen   uint64 // bumped on every (re)schedule and exit; stale timer callbacks are ignored
	done  chan struct{}
}

// Show displays n. When n.AutoDismiss > 0, n.OnDismiss is scheduled to run after that delay.
func Show(n Notification) *Toast {
	n.Kind = n.Kind.OrDefault()
	t := &Toast{n: n, done: make(chan struct{})}
	t.mu.Lock()
	t.schedule(n.AutoDismiss)
	t.mu.Unlock()
	return t
}

func (t *Toast) Notification() Notification { return t.n }

func (t *Toast) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Done is closed once the toast reaches a terminal state.
func (t *Toast) Done() <-chan struct{} { return t.done }

// Dismiss closes the toast by hand, cancelling any pending timer.
// It reports false if the toast was already dismissed or closed.
func (t *Toast) Dismiss() bool {
	t.mu.Lock()
	if t.terminal() {
		t.mu.Unlock()
		return false
	}
	t.release()
	t.state = StateDismissed
	t.mu.Unlock()

	t.fire()
	return true
}

// Reschedule cancels the pending timer and schedules a new one after d.
// A d <= 0 leaves the toast waiting for manual dismissal.
// It reports false if the toast was already dismissed or closed.
func (t *Toast) Reschedule(d time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.terminal() {
		return false
	}
	t.schedule(d)
	return true
}

// Close removes the toast without invoking OnDismiss.
// It reports false if the toast was already dismissed or closed.
func (t *Toast) Close() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.terminal() {
		return false
	}
	t.release()
	t.state = StateClosed
	close(t.done)
	return true
}

// schedule must be called with t.mu held.
func (t *Toast) schedule(d time.Duration) {
	t.release()
	if d <= 0 {
		t.state = StateIdle
		return
	}
	gen := t.gen
	t.state = StateScheduled
	t.tm = afterFunc(d, func() { t.expire(gen) })
}

// release stops the pending timer, if any, and invalidates its callback.
// It must be called with t.mu held.
func (t *Toast) release() {
	t.gen++
	if t.tm != nil {
		t.tm.Stop()
		t.tm = nil
	}
}

func (t *Toast) expire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.terminal() {
		t.mu.Unlock()
		return
	}
	t.tm = nil
	t.gen++
	t.state = StateDismissed
	t.mu.Unlock()

	t.fire()
}

func (t *Toast) terminal() bool {
	return t.state == StateDismissed || t.state == StateClosed
}

func (t *Toast) fire() {
	defer close(t.done)
	if t.n.OnDismiss != nil {
		t.n.OnDismiss()
	}
}
