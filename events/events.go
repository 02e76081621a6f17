package events

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/bikraj2/10101/logger"
)

const (
	EVENT_ORDER_UPDATED    = "order_updated"
	EVENT_POSITION_UPDATED = "position_updated"

	// Published by the Lightning backend when it learns the terminal
	// outcome of an outbound payment.
	EVENT_PAYMENT_SENT   = "lnclient_payment_sent"
	EVENT_PAYMENT_FAILED = "lnclient_payment_failed"
)

type Event struct {
	Event      string      `json:"event"`
	Properties interface{} `json:"properties,omitempty"`
}

type EventPublisher interface {
	RegisterSubscriber(subscriber EventSubscriber)
	RemoveSubscriber(subscriber EventSubscriber)
	Publish(event *Event)
}

type EventSubscriber interface {
	ConsumeEvent(ctx context.Context, event *Event, globalProperties map[string]interface{})
}

type eventPublisher struct {
	listeners        []EventSubscriber
	subscriberMtx    sync.Mutex
	globalProperties map[string]interface{}
}

func NewEventPublisher() *eventPublisher {
	return &eventPublisher{
		listeners:        []EventSubscriber{},
		globalProperties: map[string]interface{}{},
	}
}

func (ep *eventPublisher) RegisterSubscriber(listener EventSubscriber) {
	ep.subscriberMtx.Lock()
	defer ep.subscriberMtx.Unlock()
	ep.listeners = append(ep.listeners, listener)
}

func (ep *eventPublisher) RemoveSubscriber(listenerToRemove EventSubscriber) {
	ep.subscriberMtx.Lock()
	defer ep.subscriberMtx.Unlock()

	ep.listeners = slices.DeleteFunc(ep.listeners, func(listener EventSubscriber) bool {
		return listener == listenerToRemove
	})
}

func (ep *eventPublisher) SetGlobalProperty(key string, value interface{}) {
	ep.subscriberMtx.Lock()
	defer ep.subscriberMtx.Unlock()
	ep.globalProperties[key] = value
}

// Publish delivers the event to every subscriber on its own goroutine.
// Delivery is fire-and-forget, at most once; a failing subscriber never
// affects the publisher.
func (ep *eventPublisher) Publish(event *Event) {
	ep.subscriberMtx.Lock()
	defer ep.subscriberMtx.Unlock()

	logger.Logger.Debug().Interface("event", event).Msg("Publishing event")

	// Subscribers run after the lock is released, so they get their own
	// copy of the global properties.
	globalProperties := maps.Clone(ep.globalProperties)

	for _, listener := range ep.listeners {
		go listener.ConsumeEvent(context.Background(), event, globalProperties)
	}
}
