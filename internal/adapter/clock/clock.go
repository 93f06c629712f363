// Package clock provides port.Clock implementations.
package clock

import (
	"sync"
	"time"

	"github.com/rl1809/rent-market/internal/core/domain"
)

type System struct {
	loc *time.Location
}

func NewSystem(loc *time.Location) System {
	if loc == nil {
		loc = time.Local
	}
	return System{loc: loc}
}

func (c System) Now() time.Time {
	return domain.WallClock(time.Now().In(c.loc), c.loc)
}

func (c System) Location() *time.Location { return c.loc }

// Fixed is a manually driven clock for tests and tooling.
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

func NewFixed(now time.Time) *Fixed {
	return &Fixed{now: domain.WallClock(now, now.Location())}
}

func (c *Fixed) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Fixed) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = domain.WallClock(now, now.Location())
}

func (c *Fixed) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
