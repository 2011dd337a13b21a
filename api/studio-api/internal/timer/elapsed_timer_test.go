// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_timer

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }
func (f *fakeTicker) Stop()               { f.stopped.Store(true) }

type tickerSource struct {
	mu      sync.Mutex
	tickers []*fakeTicker
}

func (s *tickerSource) factory(time.Duration) Ticker {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time, 8)}
	s.tickers = append(s.tickers, t)
	return t
}

func (s *tickerSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tickers)
}

func TestElapsedTimer_CountsAndResets(t *testing.T) {
	src := &tickerSource{}
	var ticks atomic.Int32
	timer := NewElapsedTimer(WithTicker(src.factory), WithOnTick(func(int) { ticks.Add(1) }))

	h := timer.Start()
	require.Equal(t, 1, src.count())
	tk := src.tickers[0]
	for i := 0; i < 3; i++ {
		tk.ch <- time.Now()
	}
	assert.Eventually(t, func() bool { return timer.Elapsed() == 3 }, time.Second, 5*time.Millisecond)

	timer.Stop(h)
	assert.Equal(t, 0, timer.Elapsed())
	assert.False(t, timer.Running())
	assert.True(t, tk.stopped.Load())

	observed := ticks.Load()
	tk.ch <- time.Now()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, timer.Elapsed())
	assert.Equal(t, observed, ticks.Load(), "no ticks after stop")
}

func TestElapsedTimer_StartWhileRunningIsNoop(t *testing.T) {
	src := &tickerSource{}
	timer := NewElapsedTimer(WithTicker(src.factory))

	h1 := timer.Start()
	h2 := timer.Start()
	assert.Equal(t, h1, h2)
	assert.Equal(t, 1, src.count(), "one tick source per run")

	timer.Stop(h1)
	h3 := timer.Start()
	assert.NotEqual(t, h1, h3)
	assert.Equal(t, 2, src.count())
	timer.Stop(h3)
}

func TestElapsedTimer_StaleHandleIgnored(t *testing.T) {
	src := &tickerSource{}
	timer := NewElapsedTimer(WithTicker(src.factory))

	old := timer.Start()
	timer.Stop(old)
	current := timer.Start()

	timer.Stop(old)
	assert.True(t, timer.Running())
	timer.Stop(current)
	assert.False(t, timer.Running())
}

func TestElapsedTimer_RealTicker(t *testing.T) {
	timer := NewElapsedTimer(WithInterval(5 * time.Millisecond))
	h := timer.Start()
	assert.Eventually(t, func() bool { return timer.Elapsed() >= 2 }, time.Second, time.Millisecond)
	timer.Stop(h)
	assert.Equal(t, 0, timer.Elapsed())
}

func TestFormat(t *testing.T) {
	tests := map[int]string{0: "00:00", 7: "00:07", 65: "01:05", 3600: "60:00", -4: "00:00"}
	for in, want := range tests {
		assert.Equal(t, want, Format(in))
	}
}
