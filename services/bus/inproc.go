package bussvc

import (
	"context"
	"sync"

	"github.com/nageo/backend/core"
)

// Event is a broadcast captured by the in-process bus.
type Event struct {
	Key     string
	Payload interface{}
}

// InProcBus collects broadcasts in memory. It backs local development and
// tests where no broker is running.
type InProcBus struct {
	mu     sync.Mutex
	events []Event
}

var _ core.Broadcaster = (*InProcBus)(nil)

func NewInProcBus() *InProcBus {
	return &InProcBus{events: make([]Event, 0)}
}

func (b *InProcBus) Broadcast(ctx context.Context, key string, payload interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, Event{Key: key, Payload: payload})
	return nil
}

// Events returns a copy of all captured events.
func (b *InProcBus) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	events := make([]Event, len(b.events))
	copy(events, b.events)
	return events
}

// EventsByKey returns captured events matching key.
func (b *InProcBus) EventsByKey(key string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var events []Event
	for _, evt := range b.events {
		if evt.Key == key {
			events = append(events, evt)
		}
	}
	return events
}

// Reset drops all captured events.
func (b *InProcBus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = b.events[:0]
}
