package transfer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWatchdogExpiry(t *testing.T) {
	w := newWatchdog(time.Second, time.Hour)
	defer w.stop()

	start := w.last
	assert.False(t, w.expired(start.Add(999*time.Millisecond)))
	assert.True(t, w.expired(start.Add(time.Second)))

	w.touch()
	assert.True(t, w.last.After(start) || w.last.Equal(start))
	assert.False(t, w.expired(w.last.Add(500*time.Millisecond)))
}

func TestWatchdogIntervalClampedToTimeout(t *testing.T) {
	w := newWatchdog(20*time.Millisecond, time.Hour)
	defer w.stop()

	select {
	case <-w.C():
	case <-time.After(2 * time.Second):
		t.Fatal("watchdog did not tick within the timeout window")
	}
}
