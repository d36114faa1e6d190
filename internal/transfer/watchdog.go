package transfer

import "time"

// watchdog is a per-session idle timer. It is owned by the session
// goroutine and needs no locking.
type watchdog struct {
	timeout time.Duration
	ticker  *time.Ticker
	last    time.Time
}

func newWatchdog(timeout, interval time.Duration) *watchdog {
	if interval > timeout {
		interval = timeout
	}
	return &watchdog{
		timeout: timeout,
		ticker:  time.NewTicker(interval),
		last:    time.Now(),
	}
}

// touch records activity, pushing the deadline back.
func (w *watchdog) touch() {
	w.last = time.Now()
}

// C delivers the poll ticks.
func (w *watchdog) C() <-chan time.Time {
	return w.ticker.C
}

// expired reports whether now is at least timeout past the last activity.
func (w *watchdog) expired(now time.Time) bool {
	return now.Sub(w.last) >= w.timeout
}

func (w *watchdog) stop() {
	w.ticker.Stop()
}
