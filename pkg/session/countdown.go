package session

import (
	"time"

	"github.com/sasha-s/go-deadlock"
)

// Countdown counts down once per interval and fires its finish callbacks
// exactly once when the count reaches zero, then stops itself. It is the
// sole gate for the LOAD -> RACE transition.
//
// Ticks are delivered through the post function so they run on the
// session loop like every other stimulus.
type Countdown struct {
	mutex deadlock.Mutex

	interval time.Duration
	post     func(func())

	callbacks []func()
	remaining int
	ticker    *time.Ticker
	stop      chan struct{}
}

func NewCountdown(interval time.Duration, post func(func())) *Countdown {
	if interval <= 0 {
		interval = time.Second
	}
	if post == nil {
		post = func(fn func()) { fn() }
	}
	return &Countdown{
		interval: interval,
		post:     post,
	}
}

// AddFinishCallback registers a callback for the moment the count hits
// zero.
func (c *Countdown) AddFinishCallback(callback func()) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.callbacks = append(c.callbacks, callback)
}

// Start begins counting down the given number of seconds. A second call
// while already running is ignored.
func (c *Countdown) Start(seconds int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.ticker != nil {
		return
	}

	c.remaining = seconds
	c.ticker = time.NewTicker(c.interval)
	c.stop = make(chan struct{})
	go c.run(c.ticker, c.stop)
}

// Abort cancels the countdown. Calling it while not running is a no-op.
func (c *Countdown) Abort() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.abortLocked()
}

func (c *Countdown) abortLocked() {
	if c.ticker == nil {
		return
	}
	c.ticker.Stop()
	close(c.stop)
	c.ticker = nil
	c.stop = nil
	c.remaining = 0
}

// Running reports whether a countdown is in progress.
func (c *Countdown) Running() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.ticker != nil
}

// Remaining returns the current count.
func (c *Countdown) Remaining() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.remaining
}

func (c *Countdown) run(ticker *time.Ticker, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.post(c.tick)
		}
	}
}

func (c *Countdown) tick() {
	c.mutex.Lock()
	if c.ticker == nil {
		// A tick already in flight when Abort ran.
		c.mutex.Unlock()
		return
	}

	c.remaining--
	if c.remaining > 0 {
		c.mutex.Unlock()
		return
	}

	callbacks := make([]func(), len(c.callbacks))
	copy(callbacks, c.callbacks)
	c.abortLocked()
	c.mutex.Unlock()

	for _, callback := range callbacks {
		callback()
	}
}
