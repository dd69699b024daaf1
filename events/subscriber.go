package events

// EventSubscriber is an interface for subscribers that subscribe or
// unsubscribe from the EventBus and receive Events.
type EventSubscriber interface {
	Subscribe(*EventBus)
	Unsubscribe()
	Receive(Event)
}

// Subscriber receives events through the Rx channel and can be embedded
// by any type that wants to consume the bus.
type Subscriber struct {
	Rx  chan Event
	Bus *EventBus
}

// Subscribe subscribes this Subscriber to the EventBus
func (s *Subscriber) Subscribe(bus *EventBus) {
	s.Bus = bus
	bus.Subscribe(s)
}

// Unsubscribe unsubscribes this Subscriber from the EventBus
func (s *Subscriber) Unsubscribe() {
	s.Bus.Unsubscribe(s)
}

// Receive receives an Event through the receive channel.
func (s *Subscriber) Receive(event Event) {
	s.Rx <- event
}
