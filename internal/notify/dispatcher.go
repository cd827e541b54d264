// Package notify carries durable session events from the session manager to
// the realtime gateway (and any audit sinks) without the manager knowing
// about websockets.
package notify

import (
	"context"
	"log"
	"sync"
	"time"

	"supportdesk/backend/internal/config"
)

// Notifier is what the session manager depends on.
type Notifier interface {
	Notify(room, event string, payload any)
}

// Broadcaster is the room-broadcast primitive of the realtime gateway.
type Broadcaster interface {
	Broadcast(room, event string, payload any)
}

// Event is a durable state change as seen by sinks.
type Event struct {
	Room       string    `json:"room"`
	Kind       string    `json:"kind"`
	Payload    any       `json:"payload"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Sink receives a copy of every event after the gateway broadcast.
type Sink interface {
	Publish(ctx context.Context, e Event) error
}

// Dispatcher forwards events to the gateway synchronously and queues them for
// sinks, which Run publishes in order. A slow sink never delays the caller;
// when the queue is full the sink copy is dropped. Sink failures are logged
// and never reach the caller.
type Dispatcher struct {
	gateway Broadcaster
	sinks   []Sink
	queue   chan Event
}

func NewDispatcher(gateway Broadcaster, sinks ...Sink) *Dispatcher {
	return &Dispatcher{
		gateway: gateway,
		sinks:   sinks,
		queue:   make(chan Event, config.SinkQueueSize),
	}
}

var _ Notifier = (*Dispatcher)(nil)

func (d *Dispatcher) Notify(room, event string, payload any) {
	if d.gateway != nil {
		d.gateway.Broadcast(room, event, payload)
	}
	if len(d.sinks) == 0 {
		return
	}

	e := Event{Room: room, Kind: event, Payload: payload, OccurredAt: time.Now().UTC()}
	select {
	case d.queue <- e:
	default:
		log.Printf("WARNING: sink queue full, dropping %s for %s", event, room)
	}
}

// Run publishes queued events to every sink until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-d.queue:
			d.publish(ctx, e)
		}
	}
}

func (d *Dispatcher) publish(ctx context.Context, e Event) {
	pubCtx, cancel := context.WithTimeout(ctx, config.SinkTimeout)
	defer cancel()
	for _, sink := range d.sinks {
		if err := sink.Publish(pubCtx, e); err != nil {
			log.Printf("ERROR: Failed to publish %s for %s: %v", e.Kind, e.Room, err)
		}
	}
}

// Recorder is a Notifier that keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Notify(room, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Room: room, Kind: event, Payload: payload})
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Count returns how many events of kind were sent to room.
func (r *Recorder) Count(room, kind string) int {
	n := 0
	for _, e := range r.Events() {
		if e.Room == room && e.Kind == kind {
			n++
		}
	}
	return n
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
