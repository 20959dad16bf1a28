package strategy

import (
	"github.com/slavakukuyev/elevator-go/internal/domain"
	"github.com/slavakukuyev/elevator-go/internal/route"
)

// insertOrderPlanner visits floors strictly in the order they were
// requested, ignoring the elevator's current direction. Simple, fair across
// requests, and indifferent to travel cost — the baseline strategy.
type insertOrderPlanner struct{}

// NewInsertOrder returns a Strategy that visits floors in request order.
func NewInsertOrder(cfg Config) *Strategy {
	return &Strategy{Planner: insertOrderPlanner{}, Cfg: cfg}
}

func (insertOrderPlanner) OrderedStops(rt *route.Route, current int, target *int, stopEarly StopEarlyFunc) []int {
	if target != nil {
		rt.AddRide(domain.NewFloor(*target), nil)
	}

	keys := rt.Keys()
	stops := make([]int, 0, len(keys))
	for _, k := range keys {
		stops = append(stops, k)
		rt.VisitNow(domain.NewFloor(k))

		if stopEarly != nil && stopEarly(k, stops) {
			break
		}
		if target != nil && k == *target {
			break
		}
	}
	return stops
}

func (insertOrderPlanner) NrFloorsToMove(rt *route.Route, current int) int {
	return defaultNrFloorsToMove(rt, current)
}
