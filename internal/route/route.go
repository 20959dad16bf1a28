// Package route models an elevator's pending stops as an ordered queue that
// mixes two kinds of keys: plain floors (real requests) and conditional
// floors (deferred dropoff reservations minted by add_ride and only
// materialized once their pickup is visited).
package route

import (
	"sync"

	"github.com/slavakukuyev/elevator-go/internal/domain"
)

// RouteItem is the queue entry backing a single Floor key. A floor can be
// requested more than once before it is visited (pickup and dropoff both
// landing on the same floor, or two independent rides to the same floor);
// RequestCount tracks how many distinct add_ride calls are waiting on it.
type RouteItem struct {
	Floor         domain.Floor
	VisitAfter    []*domain.ConditionalFloor
	DeleteOnVisit []*domain.ConditionalFloor
	RequestCount  int
}

// ButtonEvent reports a pushed_buttons transition: floor became active
// (requested) or inactive (its last pending request was visited).
type ButtonEvent struct {
	Floor  int
	Active bool
}

type keyKind int

const (
	keyFloor keyKind = iota
	keyConditional
)

type routeKey struct {
	kind  keyKind
	floor domain.Floor
	cond  *domain.ConditionalFloor
}

func (k routeKey) value() int {
	if k.kind == keyConditional {
		return k.cond.Value()
	}
	return k.floor.Value()
}

// Route is the mutex-protected, insertion-ordered queue a single elevator's
// Strategy consumes. All exported methods are safe for concurrent use.
type Route struct {
	mu        sync.Mutex
	keys      []routeKey
	items     map[int]*RouteItem
	onButtons []func(ButtonEvent)
}

// New returns an empty route.
func New() *Route {
	return &Route{items: make(map[int]*RouteItem)}
}

// OnButton registers a listener invoked every time a floor transitions
// between having pending requests and having none. Listeners are called
// synchronously, under no lock held by Route, in registration order.
func (r *Route) OnButton(fn func(ButtonEvent)) {
	r.mu.Lock()
	r.onButtons = append(r.onButtons, fn)
	r.mu.Unlock()
}

// AddRide reserves a pickup stop and, if dropoff is non-nil, a conditional
// dropoff tag that only becomes a real stop once the pickup is visited.
// Calling AddRide twice with the same pickup is not deduplicated: each call
// increments that floor's RequestCount, matching a building where two people
// on the same floor both press the button.
func (r *Route) AddRide(pickup domain.Floor, dropoff *domain.Floor) (*RouteItem, error) {
	r.mu.Lock()
	item := r.ensureFloorLocked(pickup)
	item.RequestCount++
	var pending []ButtonEvent
	if item.RequestCount == 1 {
		pending = append(pending, ButtonEvent{Floor: pickup.Value(), Active: true})
	}

	if dropoff != nil {
		cf := domain.NewConditionalFloor(*dropoff)
		item.VisitAfter = append(item.VisitAfter, cf)
		r.keys = append(r.keys, routeKey{kind: keyConditional, cond: cf})
	}
	listeners := append([]func(ButtonEvent){}, r.onButtons...)
	r.mu.Unlock()

	r.emit(listeners, pending)
	return item, nil
}

// ShouldVisit reports whether f is currently a Floor key with at least one
// pending request.
func (r *Route) ShouldVisit(f domain.Floor) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[f.Value()]
	return ok && item.RequestCount > 0
}

// VisitNow visits f: clears its pending requests, materializes any
// conditional dropoffs that were waiting on it (appending them as new Floor
// keys at the tail of the queue), and removes f's own key. Returns false
// without effect if f is not currently a Floor key.
func (r *Route) VisitNow(f domain.Floor) bool {
	r.mu.Lock()

	item, ok := r.items[f.Value()]
	if !ok {
		r.mu.Unlock()
		return false
	}

	item.RequestCount = 0
	pending := []ButtonEvent{{Floor: f.Value(), Active: false}}

	for _, cf := range item.VisitAfter {
		target := r.ensureFloorLocked(cf.Floor())
		target.RequestCount++
		target.DeleteOnVisit = append(target.DeleteOnVisit, cf)
		if target.RequestCount == 1 {
			pending = append(pending, ButtonEvent{Floor: cf.Floor().Value(), Active: true})
		}
	}
	item.VisitAfter = nil

	r.removeConditionalTagsLocked(item.DeleteOnVisit)
	item.DeleteOnVisit = nil

	delete(r.items, f.Value())
	r.removeKeyLocked(f.Value())

	listeners := append([]func(ButtonEvent){}, r.onButtons...)
	r.mu.Unlock()

	r.emit(listeners, pending)
	return true
}

func (r *Route) emit(listeners []func(ButtonEvent), events []ButtonEvent) {
	for _, ev := range events {
		for _, fn := range listeners {
			fn(ev)
		}
	}
}

// removeConditionalTagsLocked drops the conditional-floor keys that were
// waiting on item (identified by pointer identity, not floor value).
func (r *Route) removeConditionalTagsLocked(tags []*domain.ConditionalFloor) {
	if len(tags) == 0 {
		return
	}
	tagged := make(map[*domain.ConditionalFloor]bool, len(tags))
	for _, t := range tags {
		tagged[t] = true
	}
	kept := r.keys[:0:0]
	for _, k := range r.keys {
		if k.kind == keyConditional && tagged[k.cond] {
			continue
		}
		kept = append(kept, k)
	}
	r.keys = kept
}

// removeKeyLocked drops the first Floor key matching value.
func (r *Route) removeKeyLocked(value int) {
	for i, k := range r.keys {
		if k.kind == keyFloor && k.floor.Value() == value {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			return
		}
	}
}

func (r *Route) ensureFloorLocked(f domain.Floor) *RouteItem {
	if item, ok := r.items[f.Value()]; ok {
		return item
	}
	item := &RouteItem{Floor: f}
	r.items[f.Value()] = item
	r.keys = append(r.keys, routeKey{kind: keyFloor, floor: f})
	return item
}

// First returns the numeric value of the queue's first key, whether that key
// is a plain Floor or a ConditionalFloor reservation. ConditionalFloor tags
// ARE returned here: strategies consume them as ordering hints even though
// they are not yet visitable stops.
func (r *Route) First() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.keys) == 0 {
		return 0, false
	}
	return r.keys[0].value(), true
}

// Length returns the number of keys currently queued (Floor and
// ConditionalFloor combined).
func (r *Route) Length() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys)
}

// Keys returns a snapshot of every key's numeric value, in insertion order,
// as of the moment of the call. Strategies use this to take one consistent
// pass over the queue; it does not reflect mutations VisitNow makes during
// that pass.
func (r *Route) Keys() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.keys))
	for i, k := range r.keys {
		out[i] = k.value()
	}
	return out
}

// PushedButtons returns the floors with at least one pending request, i.e.
// the hall/cab buttons currently lit for this elevator.
func (r *Route) PushedButtons() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, 0, len(r.items))
	for v, item := range r.items {
		if item.RequestCount > 0 {
			out = append(out, v)
		}
	}
	return out
}

// Copy returns an independent deep copy: mutating the copy (as strategies do
// during estimation) never affects the original route.
func (r *Route) Copy() *Route {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := New()
	cp.keys = make([]routeKey, len(r.keys))
	copy(cp.keys, r.keys)
	cp.items = make(map[int]*RouteItem, len(r.items))
	for v, item := range r.items {
		itemCopy := &RouteItem{
			Floor:        item.Floor,
			RequestCount: item.RequestCount,
		}
		itemCopy.VisitAfter = append(itemCopy.VisitAfter, item.VisitAfter...)
		itemCopy.DeleteOnVisit = append(itemCopy.DeleteOnVisit, item.DeleteOnVisit...)
		cp.items[v] = itemCopy
	}
	return cp
}
