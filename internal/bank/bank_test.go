package bank

import (
	"context"
	"testing"
	"time"

	"github.com/slavakukuyev/elevator-go/internal/elevator"
	"github.com/slavakukuyev/elevator-go/internal/events"
	"github.com/slavakukuyev/elevator-go/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStrategy(limitMs int64) *strategy.Strategy {
	return strategy.NewInsertOrder(strategy.Config{
		TravelTimePerFloorMs: 20,
		DoorOpenTimeMs:       30,
		EstimationLimitMs:    limitMs,
	})
}

func newTestBank(t *testing.T, useFreeFirst bool, names ...string) *Bank {
	t.Helper()
	b := New(Config{MinFloor: 0, MaxFloor: 10, UseFreeFirst: useFreeFirst}, nil)
	for _, name := range names {
		e, err := elevator.New(name, 0, 10, 0, 20*time.Millisecond, 30*time.Millisecond,
			testStrategy(10000), elevator.CircuitBreakerConfig{MaxFailures: 3, ResetTimeout: time.Second, HalfOpenLimit: 1}, nil)
		require.NoError(t, err)
		require.NoError(t, b.AddElevator(e))
	}
	return b
}

func TestBank_AddRide_RejectsOutOfRangeFloor(t *testing.T) {
	b := newTestBank(t, true, "A")
	_, err := b.AddRide(50, nil)
	assert.Error(t, err)
}

func TestBank_AddRide_FreeFirstPicksAnIdleElevator(t *testing.T) {
	b := newTestBank(t, true, "A", "B")
	id, err := b.AddRide(3, nil)
	require.NoError(t, err)
	assert.Contains(t, []string{"A", "B"}, id)
}

func TestBank_AddRide_PrefersMinimumEstimateWhenNotFreeFirst(t *testing.T) {
	b := newTestBank(t, false, "A", "B")

	// Give one elevator a pending ride first. Both estimates tie, so A (first
	// inserted) takes it and immediately starts moving up, reporting floor 1
	// (its travel destination) as its current floor.
	idA, err := b.AddRide(9, nil)
	require.NoError(t, err)

	// A second ride at floor 1 goes to whichever estimate is lower: A needs
	// only a door cycle (30ms), idle B at 0 one floor of travel plus the door
	// (50ms).
	idB, err := b.AddRide(1, nil)
	require.NoError(t, err)

	assert.NotEmpty(t, idA)
	assert.NotEmpty(t, idB)
}

func TestBank_AddRide_FallsBackToShortestRouteWhenAllOverLimit(t *testing.T) {
	b := New(Config{MinFloor: 0, MaxFloor: 10, UseFreeFirst: false}, nil)
	tinyLimit := testStrategy(1)

	a, err := elevator.New("A", 0, 10, 0, 20*time.Millisecond, 30*time.Millisecond, tinyLimit,
		elevator.CircuitBreakerConfig{MaxFailures: 3, ResetTimeout: time.Second, HalfOpenLimit: 1}, nil)
	require.NoError(t, err)
	c, err := elevator.New("B", 0, 10, 0, 20*time.Millisecond, 30*time.Millisecond, tinyLimit,
		elevator.CircuitBreakerConfig{MaxFailures: 3, ResetTimeout: time.Second, HalfOpenLimit: 1}, nil)
	require.NoError(t, err)
	require.NoError(t, b.AddElevator(a))
	require.NoError(t, b.AddElevator(c))

	id, err := b.AddRide(5, nil)
	require.NoError(t, err)
	assert.Equal(t, "A", id)
}

func TestBank_AddElevator_RejectsDuplicateID(t *testing.T) {
	b := newTestBank(t, true, "A")
	dup, err := elevator.New("A", 0, 10, 0, time.Millisecond, time.Millisecond, testStrategy(10000),
		elevator.CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Second, HalfOpenLimit: 1}, nil)
	require.NoError(t, err)

	err = b.AddElevator(dup)
	assert.Error(t, err)
}

func TestBank_ListElevators_PreservesInsertionOrder(t *testing.T) {
	b := newTestBank(t, true, "A", "B", "C")
	assert.Equal(t, []string{"A", "B", "C"}, b.ListElevators())
}

func TestBank_RemoveElevator_DetachesAndStops(t *testing.T) {
	b := newTestBank(t, true, "A", "B")
	require.NoError(t, b.RemoveElevator("A"))
	assert.Equal(t, []string{"B"}, b.ListElevators())
}

func TestBank_GetElevatorState_UnknownIDErrors(t *testing.T) {
	b := newTestBank(t, true, "A")
	_, err := b.GetElevatorState("nope")
	assert.Error(t, err)
}

func TestBank_Listen_ReceivesAvailabilityOnAdd(t *testing.T) {
	b := New(Config{MinFloor: 0, MaxFloor: 10, UseFreeFirst: true}, nil)

	received := make(chan events.Event, 1)
	b.Listen("availability", func(ev events.Event) {
		received <- ev
	})

	e, err := elevator.New("A", 0, 10, 0, time.Millisecond, time.Millisecond, testStrategy(10000),
		elevator.CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Second, HalfOpenLimit: 1}, nil)
	require.NoError(t, err)
	require.NoError(t, b.AddElevator(e))

	select {
	case ev := <-received:
		assert.True(t, ev.Added)
		assert.Equal(t, "A", ev.ElevatorID)
	case <-time.After(time.Second):
		t.Fatal("expected an availability event on add")
	}
}

func TestBank_Shutdown_StopsWithinTimeout(t *testing.T) {
	b := newTestBank(t, true, "A")
	b.Start()
	_, err := b.AddRide(5, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	b.Shutdown(ctx)

	assert.False(t, b.IsRunning())
}
