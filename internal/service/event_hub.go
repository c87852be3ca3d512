package service

import (
	"sync"

	"github.com/stemsi/exstem-session/internal/examsession"
)

// eventHub fans session events out to stream subscribers. A slow subscriber
// loses its oldest buffered event rather than stalling the session.
type eventHub struct {
	mu     sync.Mutex
	next   int
	subs   map[int]chan examsession.Event
	closed bool
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[int]chan examsession.Event)}
}

func (h *eventHub) subscribe() (<-chan examsession.Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan examsession.Event, subscriberBacklog)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.next
	h.next++
	h.subs[id] = ch

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
}

func (h *eventHub) publish(ev examsession.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs {
		select {
		case ch <- ev:
			continue
		default:
		}
		// Full: drop the oldest and retry once.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *eventHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
