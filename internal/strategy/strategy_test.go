package strategy

import (
	"testing"

	"github.com/slavakukuyev/elevator-go/internal/domain"
	"github.com/slavakukuyev/elevator-go/internal/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{TravelTimePerFloorMs: 2000, DoorOpenTimeMs: 5000, EstimationLimitMs: 10000}
}

func TestInsertOrder_OrderedStops(t *testing.T) {
	rt := route.New()
	rt.AddRide(domain.NewFloor(7), nil)
	rt.AddRide(domain.NewFloor(5), nil)
	rt.AddRide(domain.NewFloor(10), nil)

	s := NewInsertOrder(testConfig())
	stops := s.OrderedStops(rt, 3, nil, nil)

	assert.Equal(t, []int{7, 5, 10}, stops)
	assert.Equal(t, 0, rt.Length())
}

func TestStopEnRoute_DetoursOnTheWay(t *testing.T) {
	rt := route.New()
	rt.AddRide(domain.NewFloor(7), nil)
	rt.AddRide(domain.NewFloor(5), nil)
	rt.AddRide(domain.NewFloor(10), nil)

	s := NewStopEnRoute(testConfig())
	stops := s.OrderedStops(rt, 3, nil, nil)

	assert.Equal(t, []int{5, 7, 10}, stops)
	assert.Equal(t, 0, rt.Length())
}

func TestStrategy_EstimatePickupDropoffTime_SamePickup(t *testing.T) {
	rt := route.New()
	s := NewInsertOrder(testConfig())

	est := s.EstimatePickupDropoffTime(rt, 3, 3, nil)
	require.GreaterOrEqual(t, est, int64(0))
	assert.Equal(t, int64(5000), est) // one DOOR_OPEN_TIME, no travel
}

func TestStrategy_EstimatePickupDropoffTime_ExceedsLimit(t *testing.T) {
	rt := route.New()
	rt.AddRide(domain.NewFloor(20), nil)

	s := NewInsertOrder(testConfig())
	// Elevator at 0 must first clear its own pending stop at 20 before it
	// could even consider a pickup back at 5: InsertOrder visits keys in
	// the order they were queued, so 20 comes first and blows the limit.
	est := s.EstimatePickupDropoffTime(rt, 0, 5, nil)
	assert.Equal(t, int64(-1), est)
}

func TestStrategy_EstimatePickupDropoffTime_WithinLimit(t *testing.T) {
	rt := route.New()
	s := NewInsertOrder(testConfig())

	est := s.EstimatePickupDropoffTime(rt, 4, 5, nil)
	require.NotEqual(t, int64(-1), est)
	assert.Equal(t, int64(5000+2000), est) // one door + one floor of travel
}

func TestStrategy_CheckIfRideIsVetoed_NeverVetoesByDefault(t *testing.T) {
	rt := route.New()
	s := NewInsertOrder(testConfig())
	assert.False(t, s.CheckIfRideIsVetoed(rt, 0, 5, nil))
}

func TestStrategy_NrFloorsToMove(t *testing.T) {
	rt := route.New()
	s := NewInsertOrder(testConfig())
	assert.Equal(t, 0, s.NrFloorsToMove(rt, 0))

	rt.AddRide(domain.NewFloor(7), nil)
	assert.Equal(t, 1, s.NrFloorsToMove(rt, 0))
	assert.Equal(t, -1, s.NrFloorsToMove(rt, 9))
	assert.Equal(t, 0, s.NrFloorsToMove(rt, 7))
}
