// internal/sched/tickclock.go

package sched

import (
	"sync"
	"sync/atomic"
	"time"
)

// TickClock emits ticks and counts them atomically. It is the time base of
// the simulated kernel: releases are due at tick boundaries.
type TickClock struct {
	Ch    chan int64 // carries the tick number
	count atomic.Int64
	stop  chan struct{}
	once  sync.Once
}

// NewTickClock creates a stopped clock.
func NewTickClock(buffer int) *TickClock {
	return &TickClock{
		Ch:   make(chan int64, buffer),
		stop: make(chan struct{}),
	}
}

// Start begins emitting ticks at the given interval.
func (c *TickClock) Start(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				n := c.count.Add(1)
				select {
				case c.Ch <- n:
				case <-c.stop:
					close(c.Ch)
					return
				}
			case <-c.stop:
				close(c.Ch)
				return
			}
		}
	}()
}

// Stop signals the clock to stop emitting ticks. Safe to call twice.
func (c *TickClock) Stop() {
	c.once.Do(func() { close(c.stop) })
}

// Count returns the current tick count atomically.
func (c *TickClock) Count() int64 {
	return c.count.Load()
}
