// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_publisher

import (
	"context"
	"sync"

	"github.com/rapidaai/studio/pkg/commons"
)

// Hub is an in-process publisher with many subscribers. Slow subscribers
// lose events instead of blocking the writer.
type Hub struct {
	logger commons.Logger

	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]chan Event
	last   *Event
}

func NewHub(logger commons.Logger) *Hub {
	return &Hub{logger: logger, subs: make(map[uint64]chan Event)}
}

func (h *Hub) Publish(ctx context.Context, ev Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = &ev
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.logger.Warnw("dropping transcript event for slow subscriber", "subscriber", id, "session", ev.SessionID)
		}
	}
	return nil
}

// Subscribe registers a reader. The latest event, if any, is delivered first.
// The returned func unsubscribes and closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	if h.last != nil {
		ch <- *h.last
	}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			close(ch)
			h.mu.Unlock()
		})
	}
}

// Subscribers is the number of registered readers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
