package clock

import (
	"sync"
	"time"
)

// Clock supplies the current instant. Production code uses Real(); tests
// use Fixed() so that every pass is replayable.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// Real returns a Clock backed by the system time in UTC.
func Real() Clock { return realClock{} }

// FixedClock always reports the same instant until Set or Advance moves it.
// It is safe for concurrent use.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func Fixed(t time.Time) *FixedClock {
	return &FixedClock{now: t}
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
