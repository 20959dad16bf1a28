// Package strategy turns a Route into an ordering: the sequence of floors an
// elevator should visit next, and how long picking up and dropping off a
// given ride is expected to take. Strategies are pure planners — they never
// touch an IO or an Elevator, only a Route (usually a copy of one).
package strategy

import (
	"runtime"

	"github.com/slavakukuyev/elevator-go/internal/domain"
	"github.com/slavakukuyev/elevator-go/internal/route"
)

// stopsPerBatch is how many stops a single planner invocation processes
// before the batched traversal forces a yield.
const stopsPerBatch = 10

// MaxBatchIterations bounds the batched traversal used by
// EstimatePickupDropoffTime. It is a tunable safety net, not a contract:
// tripping it means the route or strategy is misbehaving, not that the
// caller did anything wrong.
const MaxBatchIterations = 1000

// StopEarlyFunc is consulted after every stop a planner visits during a
// single ordered_stops pass. Returning true ends that pass immediately.
type StopEarlyFunc func(lastStop int, stopsSoFar []int) bool

// Planner is the part that differs between InsertOrder and StopEnRoute: how
// a single pass over the route's current keys turns into an ordered list of
// stops, and which direction to move in when there is nothing to visit yet.
type Planner interface {
	OrderedStops(rt *route.Route, current int, target *int, stopEarly StopEarlyFunc) []int
	NrFloorsToMove(rt *route.Route, current int) int
}

// VetoFunc lets a strategy refuse a ride outright (e.g. a freight-only
// elevator rejecting a ride tagged for passengers). Both reference
// strategies leave this nil, meaning "never veto".
type VetoFunc func(rt *route.Route, current, pickup int, dropoff *int) bool

// Config carries the timing knobs ordered_stops itself doesn't need but
// EstimatePickupDropoffTime does.
type Config struct {
	TravelTimePerFloorMs int64
	DoorOpenTimeMs       int64
	EstimationLimitMs    int64
}

// Strategy wraps a Planner with the shared estimation machinery (batched
// traversal, the ESTIMATION_LIMIT cutoff) so InsertOrder and StopEnRoute
// don't each reimplement it.
type Strategy struct {
	Planner Planner
	Cfg     Config
	Veto    VetoFunc
}

// OrderedStops delegates to the wrapped Planner.
func (s *Strategy) OrderedStops(rt *route.Route, current int, target *int, stopEarly StopEarlyFunc) []int {
	return s.Planner.OrderedStops(rt, current, target, stopEarly)
}

// NrFloorsToMove delegates to the wrapped Planner.
func (s *Strategy) NrFloorsToMove(rt *route.Route, current int) int {
	return s.Planner.NrFloorsToMove(rt, current)
}

// CheckIfRideIsVetoed reports whether this strategy refuses the given ride.
// A nil Veto hook never vetoes.
func (s *Strategy) CheckIfRideIsVetoed(rt *route.Route, current, pickup int, dropoff *int) bool {
	if s.Veto == nil {
		return false
	}
	return s.Veto(rt, current, pickup, dropoff)
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func absInt64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

// defaultNrFloorsToMove moves one floor towards the route's first key, or
// stands still if there is nothing queued or the elevator is already there.
// Both reference strategies share this: ordered_stops is where InsertOrder
// and StopEnRoute actually differ, not the single-step nudge.
func defaultNrFloorsToMove(rt *route.Route, current int) int {
	first, ok := rt.First()
	if !ok || first == current {
		return 0
	}
	if first > current {
		return 1
	}
	return -1
}

// batchedOrderedStops repeatedly invokes the wrapped Planner's OrderedStops,
// forcing a cooperative yield every stopsPerBatch stops, until either the
// target is reached, the route runs dry, or onStop signals it is done early
// (e.g. the estimation limit was exceeded). Each batch re-reads the route's
// current state, so conditional dropoffs materialized by an earlier batch
// are visible to later ones.
func (s *Strategy) batchedOrderedStops(rt *route.Route, current, target int, onStop func(stop int) bool) (reached int, err error) {
	cur := current
	done := false
	iterations := 0
	var recentStops []int

	for !done && cur != target {
		iterations++
		if iterations > MaxBatchIterations {
			return cur, domain.NewInternalBugError(
				"strategy batch exceeded the iteration safety bound", map[string]interface{}{
					"current_floor":  cur,
					"target_floor":   target,
					"iteration_count": iterations,
					"recent_stops":   recentStops,
				})
		}

		count := 0
		t := target
		stops := s.Planner.OrderedStops(rt, cur, &t, func(lastStop int, stopsSoFar []int) bool {
			count++
			if onStop(lastStop) {
				done = true
				return true
			}
			return count%stopsPerBatch == 0
		})

		if len(stops) > 0 {
			cur = stops[len(stops)-1]
			recentStops = stops
		} else if !done {
			// No progress this batch and not yet done: avoid spinning forever
			// on a route that ordered_stops can't make headway on.
			break
		}

		runtime.Gosched()
	}

	return cur, nil
}

// EstimatePickupDropoffTime estimates, in milliseconds, how long it would
// take this strategy's elevator to reach pickup and then (if given) dropoff,
// starting from current. Returns -1 if the estimate would exceed
// Cfg.EstimationLimitMs, meaning "too far to usefully compare".
func (s *Strategy) EstimatePickupDropoffTime(rt *route.Route, current, pickup int, dropoff *int) int64 {
	working := rt.Copy()
	var estimated int64
	last := current

	onStop := func(stop int) bool {
		estimated += s.Cfg.DoorOpenTimeMs + absInt64(int64(stop-last))*s.Cfg.TravelTimePerFloorMs
		last = stop
		return estimated > s.Cfg.EstimationLimitMs
	}

	if current == pickup {
		estimated += s.Cfg.DoorOpenTimeMs
	} else {
		reachedAt, err := s.batchedOrderedStops(working, current, pickup, onStop)
		if err != nil {
			return -1
		}
		if estimated > s.Cfg.EstimationLimitMs || reachedAt != pickup {
			return -1
		}
	}

	if dropoff != nil {
		last = pickup
		reachedAt, err := s.batchedOrderedStops(working, pickup, *dropoff, onStop)
		if err != nil {
			return -1
		}
		if estimated > s.Cfg.EstimationLimitMs || reachedAt != *dropoff {
			return -1
		}
	}

	if estimated > s.Cfg.EstimationLimitMs {
		return -1
	}
	return estimated
}
