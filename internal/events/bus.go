// Package events carries item lifecycle notifications from the media server to the scan hook.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/saltyorg/easierlife/internal/library"
)

// Type identifies an item lifecycle event
type Type string

const (
	ItemAdded   Type = "item.added"
	ItemUpdated Type = "item.updated"
)

// Source names where an event came from
const (
	SourceWebSocket = "websocket"
	SourceWebhook   = "webhook"
)

// ItemEvent reports that an item was added to or updated in the library.
// Item may be nil when the source only knows the id.
type ItemEvent struct {
	Type       Type
	ItemID     string
	Item       *library.Item
	Reason     library.UpdateReason
	Source     string
	OccurredAt time.Time
}

// NewItemEvent creates an event stamped with the current time
func NewItemEvent(t Type, itemID string, reason library.UpdateReason, source string) ItemEvent {
	return ItemEvent{
		Type:       t,
		ItemID:     itemID,
		Reason:     reason,
		Source:     source,
		OccurredAt: time.Now(),
	}
}

// Bus fans item events out to subscribers. Delivery never blocks the publisher.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Type][]chan ItemEvent
	allSubs     []chan ItemEvent
	closed      bool
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{subscribers: make(map[Type][]chan ItemEvent)}
}

// Publish delivers the event to every matching subscriber, dropping it for subscribers whose buffer is full
func (b *Bus) Publish(ctx context.Context, e ItemEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}

	for _, ch := range b.subscribers[e.Type] {
		b.deliver(ch, e)
	}
	for _, ch := range b.allSubs {
		b.deliver(ch, e)
	}
	return nil
}

func (b *Bus) deliver(ch chan ItemEvent, e ItemEvent) {
	select {
	case ch <- e:
	default:
		log.Warn().
			Str("type", string(e.Type)).
			Str("item_id", e.ItemID).
			Msg("Event subscriber is full, dropping event")
	}
}

// Subscribe returns a channel receiving events of the given type
func (b *Bus) Subscribe(t Type, bufferSize int) <-chan ItemEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan ItemEvent, bufferSize)
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers[t] = append(b.subscribers[t], ch)
	return ch
}

// SubscribeAll returns a channel receiving every event
func (b *Bus) SubscribeAll(bufferSize int) <-chan ItemEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan ItemEvent, bufferSize)
	if b.closed {
		close(ch)
		return ch
	}
	b.allSubs = append(b.allSubs, ch)
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe or SubscribeAll.
// Unknown channels are ignored.
func (b *Bus) Unsubscribe(ch <-chan ItemEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for t, subs := range b.subscribers {
		for i, sub := range subs {
			if sub == ch {
				b.subscribers[t] = append(subs[:i:i], subs[i+1:]...)
				close(sub)
				return
			}
		}
	}
	for i, sub := range b.allSubs {
		if sub == ch {
			b.allSubs = append(b.allSubs[:i:i], b.allSubs[i+1:]...)
			close(sub)
			return
		}
	}
}

// SubscriberCount returns the number of open subscriptions
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := len(b.allSubs)
	for _, subs := range b.subscribers {
		n += len(subs)
	}
	return n
}

// Close closes every subscriber channel. Later publishes are ignored.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, subs := range b.subscribers {
		for _, ch := range subs {
			close(ch)
		}
	}
	b.subscribers = nil
	for _, ch := range b.allSubs {
		close(ch)
	}
	b.allSubs = nil
	return nil
}
