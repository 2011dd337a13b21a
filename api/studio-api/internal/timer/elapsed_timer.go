// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_timer

import (
	"fmt"
	"sync"
	"time"
)

// Ticker is the tick source behind the timer, replaceable in tests.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type TickerFactory func(d time.Duration) Ticker

type stdTicker struct{ t *time.Ticker }

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

func newStdTicker(d time.Duration) Ticker {
	return stdTicker{t: time.NewTicker(d)}
}

// Handle identifies one run of the timer.
type Handle uint64

// ElapsedTimer counts whole seconds of an active session. It owns at most one
// tick source at a time.
type ElapsedTimer interface {
	// Start begins counting. Calling Start while running returns the current handle.
	Start() Handle
	// Stop cancels the run identified by h and resets the counter to zero.
	Stop(h Handle)
	Elapsed() int
	Running() bool
}

type Option func(*elapsedTimer)

func WithTicker(factory TickerFactory) Option {
	return func(t *elapsedTimer) { t.newTicker = factory }
}

func WithInterval(d time.Duration) Option {
	return func(t *elapsedTimer) { t.interval = d }
}

// WithOnTick is called after every tick with the new count.
func WithOnTick(fn func(elapsed int)) Option {
	return func(t *elapsedTimer) { t.onTick = fn }
}

type elapsedTimer struct {
	newTicker TickerFactory
	interval  time.Duration
	onTick    func(int)

	mu      sync.Mutex
	handle  Handle
	running bool
	elapsed int
	ticker  Ticker
	done    chan struct{}
}

func NewElapsedTimer(opts ...Option) ElapsedTimer {
	t := &elapsedTimer{
		newTicker: newStdTicker,
		interval:  time.Second,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *elapsedTimer) Start() Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return t.handle
	}
	t.handle++
	t.running = true
	t.elapsed = 0
	t.ticker = t.newTicker(t.interval)
	t.done = make(chan struct{})
	go t.loop(t.handle, t.ticker, t.done)
	return t.handle
}

func (t *elapsedTimer) loop(h Handle, ticker Ticker, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-ticker.C():
			t.mu.Lock()
			if !t.running || t.handle != h {
				t.mu.Unlock()
				return
			}
			t.elapsed++
			elapsed, onTick := t.elapsed, t.onTick
			t.mu.Unlock()
			if onTick != nil {
				onTick(elapsed)
			}
		}
	}
}

func (t *elapsedTimer) Stop(h Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running || h != t.handle {
		return
	}
	t.running = false
	t.elapsed = 0
	t.ticker.Stop()
	close(t.done)
	t.ticker, t.done = nil, nil
}

func (t *elapsedTimer) Elapsed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsed
}

func (t *elapsedTimer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Format renders seconds as MM:SS.
func Format(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
