package play

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// TimerState is the countdown lifecycle.
type TimerState int

const (
	TimerReady TimerState = iota
	TimerRunning
	TimerPaused
	TimerStopped
	TimerExpired
)

func (s TimerState) String() string {
	switch s {
	case TimerReady:
		return "READY"
	case TimerRunning:
		return "RUNNING"
	case TimerPaused:
		return "PAUSED"
	case TimerStopped:
		return "STOPPED"
	case TimerExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// CountdownTimer is a single clock with pause/resume semantics. Remaining
// time is virtual: a frozen budget minus the elapsed running span from a
// monotonic clock, so pausing never loses time. The end callback fires
// exactly once per arm cycle; Stop/Pause before expiry cancel it.
//
// The clock is injected so tests drive fake time. The dispatch func
// serializes expiry delivery onto the owner's event loop; a nil dispatch
// calls the callback inline.
type CountdownTimer struct {
	clock    clockwork.Clock
	dispatch func(func())
	onEnd    func()

	mu        sync.Mutex
	state     TimerState
	total     int
	frozen    time.Duration
	startedAt time.Time
	expiry    clockwork.Timer
	arm       uint64
}

func NewCountdownTimer(clock clockwork.Clock, dispatch func(func())) *CountdownTimer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CountdownTimer{clock: clock, dispatch: dispatch, state: TimerReady}
}

// SetOnEnd registers the expiry callback.
func (t *CountdownTimer) SetOnEnd(fn func()) {
	t.mu.Lock()
	t.onEnd = fn
	t.mu.Unlock()
}

func (t *CountdownTimer) State() TimerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *CountdownTimer) TotalSeconds() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// Remaining reports the time left on the current arm cycle.
func (t *CountdownTimer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remainingLocked()
}

func (t *CountdownTimer) remainingLocked() time.Duration {
	if t.state != TimerRunning {
		return t.frozen
	}
	left := t.frozen - t.clock.Since(t.startedAt)
	if left < 0 {
		left = 0
	}
	return left
}

// Ready initializes the timer with a fresh budget, discarding any prior run.
// The only way to revive a STOPPED or EXPIRED timer.
func (t *CountdownTimer) Ready(totalSeconds int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
	t.total = totalSeconds
	t.frozen = time.Duration(totalSeconds) * time.Second
	t.state = TimerReady
}

// Restart re-arms from the full budget and runs.
func (t *CountdownTimer) Restart() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == TimerStopped || t.state == TimerExpired {
		return
	}
	t.cancelLocked()
	t.frozen = time.Duration(t.total) * time.Second
	t.runLocked()
}

// Resume continues from the frozen remainder. No-op while RUNNING and after
// STOPPED/EXPIRED; a READY timer starts with its full budget.
func (t *CountdownTimer) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TimerPaused && t.state != TimerReady {
		return
	}
	t.runLocked()
}

// Pause freezes the remainder and cancels the pending expiry.
func (t *CountdownTimer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TimerRunning {
		return
	}
	t.frozen = t.remainingLocked()
	t.cancelLocked()
	t.state = TimerPaused
}

// Stop terminates the current run; only Ready revives the timer afterwards.
func (t *CountdownTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
	t.state = TimerStopped
}

// SetRemaining overrides the time left without touching the budget, so a
// later Restart still refills from the full total. A running timer re-arms
// its expiry at the new remainder.
func (t *CountdownTimer) SetRemaining(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == TimerStopped || t.state == TimerExpired {
		return
	}
	if d < 0 {
		d = 0
	}
	if t.state == TimerRunning {
		t.cancelLocked()
		t.frozen = d
		t.runLocked()
		return
	}
	t.frozen = d
}

// SetTotalSeconds re-arms from a new budget and runs immediately. Used when
// a game timer runs out and the step timer becomes a fixed countdown.
func (t *CountdownTimer) SetTotalSeconds(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == TimerStopped {
		return
	}
	t.cancelLocked()
	t.total = n
	t.frozen = time.Duration(n) * time.Second
	t.runLocked()
}

func (t *CountdownTimer) runLocked() {
	t.startedAt = t.clock.Now()
	t.state = TimerRunning
	t.arm++
	gen := t.arm
	d := t.frozen
	t.expiry = t.clock.AfterFunc(d, func() {
		if t.dispatch != nil {
			t.dispatch(func() { t.fire(gen) })
			return
		}
		t.fire(gen)
	})
}

func (t *CountdownTimer) cancelLocked() {
	t.arm++
	if t.expiry != nil {
		t.expiry.Stop()
		t.expiry = nil
	}
}

func (t *CountdownTimer) fire(gen uint64) {
	t.mu.Lock()
	if gen != t.arm || t.state != TimerRunning {
		t.mu.Unlock()
		return
	}
	t.state = TimerExpired
	t.frozen = 0
	cb := t.onEnd
	t.mu.Unlock()

	if cb != nil {
		cb()
	}
}
