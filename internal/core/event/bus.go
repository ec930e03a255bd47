// Package event is the in-process pub/sub channel for job lifecycle
// events. Delivery is synchronous; handler errors are logged, never
// propagated to the publisher.
package event

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type Handler func(ctx context.Context, event Event)

type subscriber struct {
	id      uint64
	handler Handler
}

// Bus fans events out to subscribers registered per event type.
type Bus struct {
	mu     sync.RWMutex
	subs   map[EventType][]subscriber
	nextID uint64
}

func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]subscriber)}
}

func (b *Bus) Publish(ctx context.Context, ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.RLock()
	subs := make([]subscriber, len(b.subs[ev.Type]))
	copy(subs, b.subs[ev.Type])
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.handler(ctx, ev)
	}
	log.Trace().Str("event", string(ev.Type)).Int("subscribers", len(subs)).Msg("event published")
}

// Subscribe registers the handler for one or more event types and returns
// a function that removes it again.
func (b *Bus) Subscribe(handler Handler, types ...EventType) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	for _, t := range types {
		b.subs[t] = append(b.subs[t], subscriber{id: id, handler: handler})
	}
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, t := range types {
			entries := b.subs[t]
			for i, s := range entries {
				if s.id == id {
					b.subs[t] = append(entries[:i], entries[i+1:]...)
					break
				}
			}
		}
	}
}
