// Package sessiontest provides a manually driven clock for session tests.
package sessiontest

import (
	"sync"
	"time"

	"github.com/SAP-F-2025/assessment-session-service/internal/session"
)

// FakeClock only moves when Advance is called. Advance delivers the tick to
// every live ticker and blocks until each one has received it or stopped.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

type fakeTicker struct {
	ch      chan time.Time
	stopped chan struct{}
	once    sync.Once
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.once.Do(func() { close(t.stopped) })
}

func (t *fakeTicker) isStopped() bool {
	select {
	case <-t.stopped:
		return true
	default:
		return false
	}
}

func NewFakeClock() *FakeClock {
	return &FakeClock{now: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) NewTicker(time.Duration) session.Ticker {
	t := &fakeTicker{ch: make(chan time.Time), stopped: make(chan struct{})}
	c.mu.Lock()
	c.tickers = append(c.tickers, t)
	c.mu.Unlock()
	return t
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	live := make([]*fakeTicker, 0, len(c.tickers))
	for _, t := range c.tickers {
		if !t.isStopped() {
			live = append(live, t)
		}
	}
	c.mu.Unlock()

	for _, t := range live {
		select {
		case t.ch <- now:
		case <-t.stopped:
		}
	}
}

// Created counts every ticker ever handed out.
func (c *FakeClock) Created() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

// Live counts tickers that have not been stopped.
func (c *FakeClock) Live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tickers {
		if !t.isStopped() {
			n++
		}
	}
	return n
}
