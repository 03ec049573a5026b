package testutil

import (
	"context"
	"sync"
	"time"

	"hudson/pkg/requestcontext"
)

// Clock is a manually advanced time source for tests. Context returns a
// context carrying the current instant, which every time-aware component
// reads through requestcontext.Now.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Context returns ctx stamped with the clock's current instant.
func (c *Clock) Context(ctx context.Context) context.Context {
	return requestcontext.WithTime(ctx, c.Now())
}
