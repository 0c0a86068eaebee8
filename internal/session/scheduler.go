package session

import (
	"sync"
	"time"
)

// ActionScheduler guarantees at most one outstanding action timer per
// session. Grounded on the one-timer-per-unit-of-work idiom in
// rpc/upstream.go's health checks, narrowed here to a single timer keyed by
// session id rather than by upstream name.
type ActionScheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewActionScheduler returns an empty scheduler.
func NewActionScheduler() *ActionScheduler {
	return &ActionScheduler{timers: make(map[string]*time.Timer)}
}

// Start cancels any prior action for this session, marks it busy with kind,
// and schedules onComplete to run after durationMs. onComplete is invoked on
// whatever goroutine the timer fires on; callers are expected to re-enter the
// room's serialized execution context themselves (e.g. by posting to its
// message channel) rather than mutating room state directly here.
func (a *ActionScheduler) Start(s *Session, kind Action, durationMs int64, onComplete func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cancelLocked(s.ID)

	s.CurrentAction = kind
	s.ActionStartedAt = time.Now()
	s.ActionDeadline = s.ActionStartedAt.Add(time.Duration(durationMs) * time.Millisecond)

	a.timers[s.ID] = time.AfterFunc(time.Duration(durationMs)*time.Millisecond, func() {
		onComplete()
	})
}

// Cancel stops the session's outstanding timer, if any, without invoking its
// completion callback, and returns the session to Idle.
func (a *ActionScheduler) Cancel(s *Session) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cancelLocked(s.ID)
	s.CurrentAction = ActionIdle
	s.ActionDeadline = time.Time{}
}

// Forget drops bookkeeping for a session without altering its fields, used
// when the session has already been torn down (disconnect).
func (a *ActionScheduler) Forget(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cancelLocked(sessionID)
}

func (a *ActionScheduler) cancelLocked(sessionID string) {
	if t, ok := a.timers[sessionID]; ok {
		t.Stop()
		delete(a.timers, sessionID)
	}
}

// Clear marks the completion of a fired timer: the room's completion handler
// calls this once it has processed the fired action, so a subsequent Start
// for the same session doesn't try to cancel a timer that already fired.
func (a *ActionScheduler) Clear(s *Session) {
	a.mu.Lock()
	delete(a.timers, s.ID)
	a.mu.Unlock()
	s.CurrentAction = ActionIdle
	s.ActionDeadline = time.Time{}
}
