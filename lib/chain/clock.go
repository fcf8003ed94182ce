// Package chain simulates block height and block time.
package chain

import (
	"sync"
	"time"
)

type Clock struct {
	mu    sync.RWMutex
	block uint64
	now   time.Time
}

func NewClock(block uint64, now time.Time) *Clock {
	return &Clock{block: block, now: now}
}

func (c *Clock) BlockNumber() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.block
}

func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Mine produces one block at the current time.
func (c *Clock) Mine() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.block++
	return c.block
}

// SetTime moves time to now and mines a block if time advanced. Earlier times are ignored.
func (c *Clock) SetTime(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now.After(c.now) {
		c.now = now
		c.block++
	}
}

func (c *Clock) Advance(d time.Duration) {
	c.SetTime(c.Now().Add(d))
}
