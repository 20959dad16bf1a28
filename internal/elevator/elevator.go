// Package elevator coordinates a single shaft's Route, cabio.IO and
// Strategy: the piece that turns "a ride was requested" into IO commands,
// and "the car went idle" back into the next IO command.
package elevator

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/slavakukuyev/elevator-go/internal/cabio"
	"github.com/slavakukuyev/elevator-go/internal/constants"
	"github.com/slavakukuyev/elevator-go/internal/domain"
	"github.com/slavakukuyev/elevator-go/internal/route"
	"github.com/slavakukuyev/elevator-go/internal/strategy"
	"github.com/slavakukuyev/elevator-go/metrics"
)

// CircuitBreakerConfig configures the breaker guarding the decision step.
type CircuitBreakerConfig struct {
	MaxFailures   int
	ResetTimeout  time.Duration
	HalfOpenLimit int
}

// Elevator owns one shaft: its pending Route, its physical IO, and the
// Strategy that turns one into commands for the other.
type Elevator struct {
	id       string
	minFloor domain.Floor
	maxFloor domain.Floor

	rt       *route.Route
	io       *cabio.IO
	strategy *strategy.Strategy

	cb     *CircuitBreaker
	logger *slog.Logger

	running     atomic.Bool
	unsubscribe func()

	buttonListeners []func(route.ButtonEvent)
}

// New builds an Elevator serving [minFloor, maxFloor], starting at
// initialFloor, driven by strat.
func New(id string, minFloor, maxFloor, initialFloor int, travelPerFloor, doorOpenTime time.Duration,
	strat *strategy.Strategy, cbCfg CircuitBreakerConfig, logger *slog.Logger) (*Elevator, error) {

	if id == "" {
		return nil, domain.ErrElevatorNameEmpty
	}
	if minFloor >= maxFloor {
		return nil, domain.ErrElevatorFloorsSame
	}

	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", constants.ComponentElevator), slog.String("elevator", id))

	e := &Elevator{
		id:       id,
		minFloor: domain.NewFloor(minFloor),
		maxFloor: domain.NewFloor(maxFloor),
		rt:       route.New(),
		io:       cabio.New(initialFloor, cabio.Config{TravelTimePerFloor: travelPerFloor, DoorOpenTime: doorOpenTime}, logger),
		strategy: strat,
		cb:       NewCircuitBreaker(cbCfg.MaxFailures, cbCfg.ResetTimeout, cbCfg.HalfOpenLimit),
		logger:   logger,
	}

	e.rt.OnButton(func(ev route.ButtonEvent) {
		for _, l := range e.buttonListeners {
			l(ev)
		}
	})

	e.unsubscribe = e.io.Subscribe(func(ev cabio.Event) {
		if ev.Kind == cabio.EventIdle {
			e.decisionStep()
		}
	})

	return e, nil
}

// ID returns this elevator's identifier.
func (e *Elevator) ID() string { return e.id }

// IO exposes the underlying state machine for callers (Bank, http) that
// need to observe it directly, e.g. for status reporting or wiring the
// bank-wide event dispatcher.
func (e *Elevator) IO() *cabio.IO { return e.io }

// OnButton registers fn to be called, synchronously, whenever a floor in
// this elevator's route becomes pushed or un-pushed.
func (e *Elevator) OnButton(fn func(route.ButtonEvent)) {
	e.buttonListeners = append(e.buttonListeners, fn)
}

// AddRide queues a ride: pickup always, dropoff if given. Validates both
// floors against this elevator's serviceable range, consults the strategy's
// veto hook, and kicks the decision step immediately if the elevator's IO
// is idle.
func (e *Elevator) AddRide(pickup int, dropoff *int) error {
	pf := domain.NewFloor(pickup)
	if !pf.IsValid(e.minFloor, e.maxFloor) {
		return domain.NewInvalidFloorError(pickup, e.minFloor.Value(), e.maxFloor.Value())
	}

	var df *domain.Floor
	if dropoff != nil {
		d := domain.NewFloor(*dropoff)
		if !d.IsValid(e.minFloor, e.maxFloor) {
			return domain.NewInvalidFloorError(*dropoff, e.minFloor.Value(), e.maxFloor.Value())
		}
		df = &d
	}

	if e.CheckIfRideIsVetoed(pickup, dropoff) {
		e.logger.Info("ride vetoed by strategy", slog.Int("pickup", pickup))
		metrics.IncVetoedRides(e.id)
		return domain.NewConflictError("ride vetoed by elevator's strategy", nil).
			WithContext("pickup", pickup).WithContext("elevator", e.id)
	}

	if _, err := e.rt.AddRide(pf, df); err != nil {
		return err
	}
	metrics.SetRouteLength(e.id, e.rt.Length())

	if e.io.CurrentState().Kind == cabio.Idle {
		e.decisionStep()
	}
	return nil
}

// EstimatePickupDropoffTime estimates, in milliseconds, how long this
// elevator would take to serve the given ride from its current position,
// without mutating its route. Returns -1 if the estimate exceeds the
// strategy's configured limit.
func (e *Elevator) EstimatePickupDropoffTime(pickup int, dropoff *int) int64 {
	return e.strategy.EstimatePickupDropoffTime(e.rt.Copy(), e.io.CurrentFloor(), pickup, dropoff)
}

// CheckIfRideIsVetoed reports whether this elevator's strategy refuses the
// given ride outright, before any estimation is attempted.
func (e *Elevator) CheckIfRideIsVetoed(pickup int, dropoff *int) bool {
	return e.strategy.CheckIfRideIsVetoed(e.rt.Copy(), e.io.CurrentFloor(), pickup, dropoff)
}

// IsFree reports whether this elevator has no pending route and its IO is
// idle: the cheapest possible assignment target.
func (e *Elevator) IsFree() bool {
	return e.rt.Length() == 0 && e.io.CurrentState().Kind == cabio.Idle
}

// GetRouteLength returns the number of pending route keys.
func (e *Elevator) GetRouteLength() int {
	return e.rt.Length()
}

// GetPushedButtons returns the floors with at least one pending request.
func (e *Elevator) GetPushedButtons() []int {
	return e.rt.PushedButtons()
}

// Start marks the elevator running. When soft is false, it immediately
// kicks a decision step if there is pending work; soft==true is used when a
// running Bank adds an already-configured elevator and the decision step
// will naturally fire from whatever event triggers first.
func (e *Elevator) Start(soft bool) {
	e.running.Store(true)
	if !soft {
		e.decisionStep()
	}
}

// IsRunning reports whether Start has been called without a subsequent Shutdown.
func (e *Elevator) IsRunning() bool {
	return e.running.Load()
}

// Shutdown stops the elevator: cancels any pending IO timer and detaches
// its idle-event subscription.
func (e *Elevator) Shutdown() {
	e.running.Store(false)
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
	e.io.Shutdown()
}

// decisionStep runs the single step of logic that turns "what's pending"
// into "what IO command to issue next", guarded by the circuit breaker so a
// misbehaving strategy or IO can't wedge the elevator into a tight retry
// loop. Errors are logged, never propagated: this is called from an IO
// event callback, which has no caller to return an error to.
func (e *Elevator) decisionStep() {
	err := e.cb.Execute(context.Background(), e.runDecisionStep)
	if err != nil {
		e.logger.Error("decision step failed", slog.String("error", err.Error()))
	}
	metrics.SetIOState(e.id, int(e.io.CurrentState().Kind))
	metrics.SetRouteLength(e.id, e.rt.Length())
}

func (e *Elevator) runDecisionStep() error {
	cur := e.io.CurrentFloor()
	curFloor := domain.NewFloor(cur)

	if e.rt.ShouldVisit(curFloor) {
		e.rt.VisitNow(curFloor)
		return e.io.OpenDoors()
	}

	if e.rt.Length() > 0 {
		n := e.strategy.NrFloorsToMove(e.rt, cur)
		if n == 0 {
			return nil
		}
		return e.io.Move(n)
	}

	return nil
}
