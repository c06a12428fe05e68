package session

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountdownFinishesOnce(t *testing.T) {
	c := NewCountdown(time.Millisecond, nil)

	var fired atomic.Int32
	done := make(chan struct{})
	c.AddFinishCallback(func() {
		if fired.Add(1) == 1 {
			close(done)
		}
	})

	c.Start(5)
	require.True(t, c.Running())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("countdown never finished")
	}

	// Give any stray ticks a chance to fire a second time.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
	assert.False(t, c.Running())
	assert.Zero(t, c.Remaining())
}

func TestCountdownStartIdempotent(t *testing.T) {
	c := NewCountdown(time.Hour, nil)

	c.Start(5)
	c.Start(9999)

	assert.Equal(t, 5, c.Remaining())
	c.Abort()
}

func TestCountdownAbort(t *testing.T) {
	c := NewCountdown(time.Millisecond, nil)

	var fired atomic.Int32
	c.AddFinishCallback(func() { fired.Add(1) })

	// Aborting while not running is a silent no-op.
	c.Abort()

	c.Start(1000)
	c.Abort()
	require.False(t, c.Running())

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, fired.Load())
}

func TestCountdownRestartAfterFinish(t *testing.T) {
	c := NewCountdown(time.Millisecond, nil)

	done := make(chan struct{}, 2)
	c.AddFinishCallback(func() { done <- struct{}{} })

	c.Start(2)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("first countdown never finished")
	}

	// Once stopped, a new countdown may begin.
	c.Start(2)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second countdown never finished")
	}
}
