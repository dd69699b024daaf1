package events

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// EventBus manages the state of and transmits messages to all its
// Subscribers.
type EventBus struct {
	registry map[EventSubscriber]bool
	lock     *sync.RWMutex
	done     *sync.WaitGroup
}

// NewEventBus initializes an EventBus. We need this rather than a struct
// literal so that we know our registry map is non-nil.
func NewEventBus() *EventBus {
	return &EventBus{
		registry: make(map[EventSubscriber]bool),
		lock:     &sync.RWMutex{},
		done:     &sync.WaitGroup{},
	}
}

// Subscribe the Subscriber for all Events
func (bus *EventBus) Subscribe(subscriber EventSubscriber) {
	bus.lock.Lock()
	defer bus.lock.Unlock()
	bus.registry[subscriber] = true
	bus.done.Add(1)
}

// Unsubscribe the Subscriber from all Events
func (bus *EventBus) Unsubscribe(subscriber EventSubscriber) {
	bus.lock.Lock()
	defer bus.lock.Unlock()
	if _, ok := bus.registry[subscriber]; ok {
		delete(bus.registry, subscriber)
		bus.done.Done()
	}
}

// Publish an Event to all Subscribers
func (bus *EventBus) Publish(event Event) {
	log.Debugf("event: %v %v", event.Code, event.Source)
	bus.lock.RLock()
	defer bus.lock.RUnlock()
	for subscriber := range bus.registry {
		subscriber.Receive(event)
	}
}

// Shutdown asks all Subscribers to halt by sending the GlobalShutdown
// message. Subscribers are responsible for handling this message.
func (bus *EventBus) Shutdown() {
	bus.Publish(GlobalShutdown)
}

// Wait blocks until all Subscribers have unsubscribed.
func (bus *EventBus) Wait() {
	bus.done.Wait()
}
