// Package factory builds elevator.Elevator instances from a bank-wide
// strategy and circuit-breaker configuration, so callers (cmd/server, http
// admin endpoints) don't need to know Elevator's constructor shape.
package factory

import (
	"time"

	"github.com/slavakukuyev/elevator-go/internal/elevator"
	"github.com/slavakukuyev/elevator-go/internal/strategy"
)

// ElevatorFactory builds a new Elevator ready to be registered with a Bank.
type ElevatorFactory interface {
	CreateElevator(name string, minFloor, maxFloor, initialFloor int,
		travelTimePerFloor, doorOpenTime time.Duration,
		strat *strategy.Strategy, cbCfg elevator.CircuitBreakerConfig) (*elevator.Elevator, error)
}

// StandardElevatorFactory is the default ElevatorFactory, delegating
// straight to elevator.New.
type StandardElevatorFactory struct{}

func (f StandardElevatorFactory) CreateElevator(name string, minFloor, maxFloor, initialFloor int,
	travelTimePerFloor, doorOpenTime time.Duration,
	strat *strategy.Strategy, cbCfg elevator.CircuitBreakerConfig) (*elevator.Elevator, error) {

	return elevator.New(name, minFloor, maxFloor, initialFloor,
		travelTimePerFloor, doorOpenTime, strat, cbCfg, nil)
}
