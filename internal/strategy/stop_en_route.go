package strategy

import (
	"github.com/slavakukuyev/elevator-go/internal/domain"
	"github.com/slavakukuyev/elevator-go/internal/route"
)

// stopEnRoutePlanner visits every pending floor it passes on the way to each
// successive key, not just the keys themselves — the SCAN/LOOK style of
// travel, minimizing total distance at the cost of strict request ordering.
type stopEnRoutePlanner struct{}

// NewStopEnRoute returns a Strategy that picks up every floor it passes en
// route to each queued key, in whichever direction that key lies.
func NewStopEnRoute(cfg Config) *Strategy {
	return &Strategy{Planner: stopEnRoutePlanner{}, Cfg: cfg}
}

func (stopEnRoutePlanner) OrderedStops(rt *route.Route, current int, target *int, stopEarly StopEarlyFunc) []int {
	if target != nil {
		rt.AddRide(domain.NewFloor(*target), nil)
	}

	keys := rt.Keys()
	stops := make([]int, 0, len(keys))
	cur := current
	done := false

	for _, nextStop := range keys {
		if done {
			break
		}

		step := 1
		if nextStop < cur {
			step = -1
		}

		f := cur
		for {
			if rt.ShouldVisit(domain.NewFloor(f)) {
				stops = append(stops, f)
				rt.VisitNow(domain.NewFloor(f))

				if stopEarly != nil && stopEarly(f, stops) {
					done = true
					break
				}
				if target != nil && f == *target {
					done = true
					break
				}
			}
			if f == nextStop {
				break
			}
			f += step
		}
		cur = nextStop
	}
	return stops
}

func (stopEnRoutePlanner) NrFloorsToMove(rt *route.Route, current int) int {
	return defaultNrFloorsToMove(rt, current)
}
