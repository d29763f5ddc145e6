// Package events carries the domain events of the service to their
// listeners. Dispatching is synchronous and best effort, a failing or
// panicking listener never fails the operation that raised the event.
package events

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// EventName identifies an event type
type EventName string

// Event is anything that can be dispatched, listeners subscribe by name
type Event interface {
	Name() EventName
}

// EventListener handles a single event type
type EventListener interface {
	ForEvent() EventName
	Handle(ctx context.Context, ev Event) error
}

// Dispatcher fans events out to the listeners registered for them
type Dispatcher struct {
	log      *zap.Logger
	registry map[EventName][]EventListener
}

func NewDispatcher(log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		log:      log,
		registry: make(map[EventName][]EventListener),
	}
}

// Register adds listeners, multiple listeners per event are fine
func (d *Dispatcher) Register(listener ...EventListener) {
	for _, l := range listener {
		d.log.Debug("Registering event listener", zap.String("event", string(l.ForEvent())))
		d.registry[l.ForEvent()] = append(d.registry[l.ForEvent()], l)
	}
}

// Dispatch hands the event to every registered listener in order
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) {
	listeners, ok := d.registry[event.Name()]
	if !ok {
		d.log.Info("No event listener for event", zap.String("event", string(event.Name())))
		return
	}
	for _, l := range listeners {
		d.invoke(ctx, l, event)
	}
}

func (d *Dispatcher) invoke(ctx context.Context, l EventListener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("recovered from panicing event listener",
				zap.Any("recoverer", r),
				zap.String("event", string(ev.Name())),
				zap.String("event_listener", fmt.Sprintf("%T", l)))
		}
	}()
	if err := l.Handle(ctx, ev); err != nil {
		d.log.Error("Event listener returned error",
			zap.String("event_listener", fmt.Sprintf("%T", l)),
			zap.Error(err),
			zap.String("event", string(ev.Name())))
	}
}
