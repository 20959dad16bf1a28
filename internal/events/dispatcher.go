// Package events provides the bank-wide pub/sub surface external
// collaborators (the HTTP/WebSocket layer) subscribe to: aggregated
// "state"/"availability"/"buttons" channels plus one channel per elevator
// id. Delivery is synchronous and per-channel ordered, a deliberate
// deviation from a fire-and-forget async fan-out: callers that add a ride
// right after an add_elevator event must see it reflected, which an async
// goroutine-per-subscriber dispatch cannot guarantee.
package events

import (
	"sync"

	"github.com/slavakukuyev/elevator-go/internal/cabio"
)

// Kind classifies an Event's payload, mirroring the channel it was emitted
// on (KindElevator is emitted additionally on the per-elevator-id channel).
type Kind int

const (
	KindState Kind = iota
	KindAvailability
	KindButtons
	KindElevator
)

// Event is the payload delivered to every channel subscriber. Not every
// field is populated for every Kind: Floor/Active only for KindButtons,
// Added/State only for KindAvailability.
type Event struct {
	Kind       Kind
	ElevatorID string
	From       cabio.State
	To         cabio.State
	Added      bool
	State      cabio.State
	Floor      int
	Active     bool
}

// Handler receives events delivered on a channel it subscribed to.
type Handler func(Event)

type entry struct {
	id int
	fn Handler
}

// Dispatcher is a typed, multi-channel, mutex-protected pub/sub hub. The
// channel key is a plain string: "state", "availability", "buttons", or an
// elevator id for that elevator's own dedicated channel.
type Dispatcher struct {
	mu       sync.RWMutex
	channels map[string][]entry
	nextID   int
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{channels: make(map[string][]entry)}
}

// Subscribe registers fn on the given channel key. Returns an unsubscribe
// function.
func (d *Dispatcher) Subscribe(key string, fn Handler) func() {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.channels[key] = append(d.channels[key], entry{id: id, fn: fn})
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		es := d.channels[key]
		for i, e := range es {
			if e.id == id {
				d.channels[key] = append(es[:i], es[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers ev, synchronously and in subscription order, to every
// handler currently registered on key.
func (d *Dispatcher) Emit(key string, ev Event) {
	d.mu.RLock()
	es := make([]entry, len(d.channels[key]))
	copy(es, d.channels[key])
	d.mu.RUnlock()

	for _, e := range es {
		e.fn(ev)
	}
}
