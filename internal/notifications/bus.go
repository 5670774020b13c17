// Package notifications provides the in-process event bus that the host
// rendering pipeline publishes render events to. Handlers are invoked
// synchronously, on the publisher's goroutine, in subscription order.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/frewsxcv/template-tally/internal/types"
)

// Handler receives a render event. A returned error is reported back to the
// publisher; it never stops delivery to the remaining handlers.
type Handler func(ctx context.Context, event types.RenderEvent) error

// Subscription is the handle returned by Subscribe and used to revoke it.
type Subscription struct {
	id       uint64
	category types.EventCategory
	handler  Handler
}

// Category returns the event category the subscription listens to.
func (s *Subscription) Category() types.EventCategory {
	return s.category
}

// Bus dispatches render events to subscribers by category.
type Bus struct {
	mutex       sync.RWMutex
	nextID      uint64
	subscribers map[types.EventCategory][]*Subscription
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[types.EventCategory][]*Subscription),
	}
}

// Subscribe registers handler for category and returns its handle.
func (b *Bus) Subscribe(category types.EventCategory, handler Handler) *Subscription {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.nextID++
	sub := &Subscription{
		id:       b.nextID,
		category: category,
		handler:  handler,
	}
	b.subscribers[category] = append(b.subscribers[category], sub)

	return sub
}

// Unsubscribe revokes a subscription. It reports whether the subscription
// was still active.
func (b *Bus) Unsubscribe(sub *Subscription) bool {
	if sub == nil {
		return false
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	subs := b.subscribers[sub.category]
	for i, candidate := range subs {
		if candidate.id == sub.id {
			b.subscribers[sub.category] = append(subs[:i:i], subs[i+1:]...)
			if len(b.subscribers[sub.category]) == 0 {
				delete(b.subscribers, sub.category)
			}
			return true
		}
	}

	return false
}

// Publish delivers event to every subscriber of its category. Handlers run
// outside the bus lock so they may subscribe or unsubscribe. Handler errors
// are joined and returned.
func (b *Bus) Publish(ctx context.Context, event types.RenderEvent) error {
	b.mutex.RLock()
	subs := make([]*Subscription, len(b.subscribers[event.Category]))
	copy(subs, b.subscribers[event.Category])
	b.mutex.RUnlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.handler(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%s subscriber %d: %w", event.Category, sub.id, err))
		}
	}

	return errors.Join(errs...)
}

// SubscriberCount returns the number of subscribers for category.
func (b *Bus) SubscriberCount(category types.EventCategory) int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	return len(b.subscribers[category])
}

// Count returns the number of active subscriptions across all categories.
func (b *Bus) Count() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	total := 0
	for _, subs := range b.subscribers {
		total += len(subs)
	}
	return total
}
