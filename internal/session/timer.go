package session

import (
	"sync"
	"time"
)

// Timer is the single 1 Hz tick source driving the mission countdown. The
// presentation layer owns it: ticks call back on the timer's goroutine, Pause
// suspends ticking while a blocking overlay (help) is open, and Stop cancels
// outright. Pausing and stopping are purely additive: neither touches session
// state.
type Timer struct {
	onTick func()

	mu      sync.Mutex
	paused  bool
	stopped bool
	stop    chan struct{}
}

// NewTimer starts ticking immediately, invoking onTick once per second.
func NewTimer(onTick func()) *Timer {
	t := &Timer{onTick: onTick, stop: make(chan struct{})}
	go t.run()
	return t
}

func (t *Timer) run() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.mu.Lock()
			paused := t.paused
			t.mu.Unlock()
			if !paused {
				t.onTick()
			}
		}
	}
}

// Pause suspends ticking without losing the schedule.
func (t *Timer) Pause() {
	t.mu.Lock()
	t.paused = true
	t.mu.Unlock()
}

// Resume re-enables ticking after Pause.
func (t *Timer) Resume() {
	t.mu.Lock()
	t.paused = false
	t.mu.Unlock()
}

// Stop cancels the timer. Safe to call more than once.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	close(t.stop)
}
