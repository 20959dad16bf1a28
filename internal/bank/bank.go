// Package bank dispatches ride requests across a pool of elevators: the
// multi-shaft coordinator sitting above individual elevator.Elevator
// instances.
package bank

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/slavakukuyev/elevator-go/internal/cabio"
	"github.com/slavakukuyev/elevator-go/internal/constants"
	"github.com/slavakukuyev/elevator-go/internal/domain"
	"github.com/slavakukuyev/elevator-go/internal/elevator"
	"github.com/slavakukuyev/elevator-go/internal/events"
	"github.com/slavakukuyev/elevator-go/internal/route"
)

// Config carries the bank-wide knobs that aren't per-elevator.
type Config struct {
	MinFloor     int
	MaxFloor     int
	UseFreeFirst bool
}

// Bank coordinates a pool of elevators: admission/validation, dispatch
// tiering, and fan-out of state/availability/button events.
type Bank struct {
	mu        sync.RWMutex
	order     []string
	elevators map[string]*elevator.Elevator
	unsub     map[string]func()

	cfg     Config
	events  *events.Dispatcher
	running bool
	logger  *slog.Logger
}

// New returns an empty, not-yet-started Bank.
func New(cfg Config, logger *slog.Logger) *Bank {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bank{
		elevators: make(map[string]*elevator.Elevator),
		unsub:     make(map[string]func()),
		cfg:       cfg,
		events:    events.NewDispatcher(),
		logger:    logger.With(slog.String("component", constants.ComponentBank)),
	}
}

// AddElevator registers e with the bank, wiring its IO and button events
// into the bank's dispatcher. Re-adding the same instance is a no-op;
// adding a different instance under an id already in use is a conflict.
func (b *Bank) AddElevator(e *elevator.Elevator) error {
	id := e.ID()

	b.mu.Lock()
	if existing, ok := b.elevators[id]; ok {
		b.mu.Unlock()
		if existing == e {
			b.logger.Warn("elevator already registered", slog.String("elevator", id))
			return nil
		}
		return domain.NewConflictError("elevator id already registered", nil).WithContext("elevator", id)
	}
	b.elevators[id] = e
	b.order = append(b.order, id)
	running := b.running
	b.mu.Unlock()

	unsubIO := e.IO().Subscribe(func(ev cabio.Event) {
		if ev.Kind != cabio.EventChange {
			return
		}
		payload := events.Event{Kind: events.KindState, ElevatorID: id, From: ev.From, To: ev.To}
		b.events.Emit(id, events.Event{Kind: events.KindElevator, ElevatorID: id, From: ev.From, To: ev.To})
		b.events.Emit("state", payload)
	})
	e.OnButton(func(be route.ButtonEvent) {
		b.events.Emit("buttons", events.Event{Kind: events.KindButtons, ElevatorID: id, Floor: be.Floor, Active: be.Active})
	})

	b.mu.Lock()
	b.unsub[id] = unsubIO
	b.mu.Unlock()

	if running {
		e.Start(true)
	}
	b.events.Emit("availability", events.Event{Kind: events.KindAvailability, ElevatorID: id, Added: true, State: e.IO().CurrentState()})
	return nil
}

// RemoveElevator shuts down and detaches the elevator with the given id.
// Removing an unknown id is a no-op.
func (b *Bank) RemoveElevator(id string) error {
	b.mu.Lock()
	e, ok := b.elevators[id]
	if !ok {
		b.mu.Unlock()
		b.logger.Warn("remove of unknown elevator ignored", slog.String("elevator", id))
		return nil
	}
	unsub := b.unsub[id]
	delete(b.elevators, id)
	delete(b.unsub, id)
	for i, eid := range b.order {
		if eid == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	b.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	lastState := e.IO().CurrentState()
	e.Shutdown()

	b.events.Emit("availability", events.Event{Kind: events.KindAvailability, ElevatorID: id, Added: false, State: lastState})
	return nil
}

// ListElevators returns the ids of every registered elevator, in the order
// they were added.
func (b *Bank) ListElevators() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}

// GetElevatorState returns the current IO state of the given elevator.
func (b *Bank) GetElevatorState(id string) (cabio.State, error) {
	e, err := b.get(id)
	if err != nil {
		return cabio.State{}, err
	}
	return e.IO().CurrentState(), nil
}

// GetAllElevatorStates returns the current IO state of every elevator, keyed by id.
func (b *Bank) GetAllElevatorStates() map[string]cabio.State {
	b.mu.RLock()
	ids := make([]string, len(b.order))
	copy(ids, b.order)
	elevators := make(map[string]*elevator.Elevator, len(b.elevators))
	for k, v := range b.elevators {
		elevators[k] = v
	}
	b.mu.RUnlock()

	out := make(map[string]cabio.State, len(ids))
	for _, id := range ids {
		out[id] = elevators[id].IO().CurrentState()
	}
	return out
}

// GetPushedButtons returns the floors currently requested on the given elevator.
func (b *Bank) GetPushedButtons(id string) ([]int, error) {
	e, err := b.get(id)
	if err != nil {
		return nil, err
	}
	return e.GetPushedButtons(), nil
}

// GetAllPushedButtons returns the pushed buttons of every elevator, keyed by id.
func (b *Bank) GetAllPushedButtons() map[string][]int {
	b.mu.RLock()
	ids := make([]string, len(b.order))
	copy(ids, b.order)
	elevators := make(map[string]*elevator.Elevator, len(b.elevators))
	for k, v := range b.elevators {
		elevators[k] = v
	}
	b.mu.RUnlock()

	out := make(map[string][]int, len(ids))
	for _, id := range ids {
		out[id] = elevators[id].GetPushedButtons()
	}
	return out
}

func (b *Bank) get(id string) (*elevator.Elevator, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.elevators[id]
	if !ok {
		return nil, domain.NewNotFoundError("no elevator with this id", nil).WithContext("elevator", id)
	}
	return e, nil
}

// AddRide dispatches a ride to the best-fit elevator: free-first (if
// enabled), then minimum estimated pickup+dropoff time among non-vetoing
// candidates, falling back to the shortest pending route if every estimate
// exceeded the strategy's limit. Returns the id of the elevator the ride was
// assigned to.
func (b *Bank) AddRide(pickup int, dropoff *int) (string, error) {
	if !domain.NewFloor(pickup).IsValid(domain.NewFloor(b.cfg.MinFloor), domain.NewFloor(b.cfg.MaxFloor)) {
		return "", domain.NewInvalidFloorError(pickup, b.cfg.MinFloor, b.cfg.MaxFloor)
	}
	if dropoff != nil && !domain.NewFloor(*dropoff).IsValid(domain.NewFloor(b.cfg.MinFloor), domain.NewFloor(b.cfg.MaxFloor)) {
		return "", domain.NewInvalidFloorError(*dropoff, b.cfg.MinFloor, b.cfg.MaxFloor)
	}

	candidates := b.nonVetoedCandidates(pickup, dropoff)
	if len(candidates) == 0 {
		return "", domain.NewConflictError("every elevator vetoed this ride", nil).
			WithContext("pickup", pickup)
	}

	if b.cfg.UseFreeFirst {
		for _, e := range candidates {
			if e.IsFree() {
				return b.assign(e, pickup, dropoff)
			}
		}
	}

	type estimate struct {
		e   *elevator.Elevator
		ms  int64
		idx int
	}
	estimates := make([]estimate, len(candidates))
	var wg sync.WaitGroup
	for i, e := range candidates {
		wg.Add(1)
		go func(i int, e *elevator.Elevator) {
			defer wg.Done()
			estimates[i] = estimate{e: e, ms: e.EstimatePickupDropoffTime(pickup, dropoff), idx: i}
		}(i, e)
	}
	wg.Wait()

	best := -1
	var bestMs int64
	for _, est := range estimates {
		if est.ms < 0 {
			continue
		}
		if best == -1 || est.ms < bestMs {
			best = est.idx
			bestMs = est.ms
		}
	}
	if best != -1 {
		return b.assign(estimates[best].e, pickup, dropoff)
	}

	best = -1
	var bestLen int
	for i, e := range candidates {
		l := e.GetRouteLength()
		if best == -1 || l < bestLen {
			best = i
			bestLen = l
		}
	}
	return b.assign(candidates[best], pickup, dropoff)
}

func (b *Bank) nonVetoedCandidates(pickup int, dropoff *int) []*elevator.Elevator {
	b.mu.RLock()
	ids := make([]string, len(b.order))
	copy(ids, b.order)
	elevators := make(map[string]*elevator.Elevator, len(b.elevators))
	for k, v := range b.elevators {
		elevators[k] = v
	}
	b.mu.RUnlock()

	out := make([]*elevator.Elevator, 0, len(ids))
	for _, id := range ids {
		e := elevators[id]
		if !e.CheckIfRideIsVetoed(pickup, dropoff) {
			out = append(out, e)
		}
	}
	return out
}

func (b *Bank) assign(e *elevator.Elevator, pickup int, dropoff *int) (string, error) {
	if err := e.AddRide(pickup, dropoff); err != nil {
		return "", err
	}
	return e.ID(), nil
}

// Listen subscribes fn to the given bank-wide channel ("state",
// "availability", "buttons", or a specific elevator id). Returns an
// unsubscribe function.
func (b *Bank) Listen(key string, fn events.Handler) func() {
	return b.events.Subscribe(key, fn)
}

// Start marks every registered elevator running.
func (b *Bank) Start() {
	b.mu.Lock()
	b.running = true
	ids := make([]string, len(b.order))
	copy(ids, b.order)
	elevators := make(map[string]*elevator.Elevator, len(b.elevators))
	for k, v := range b.elevators {
		elevators[k] = v
	}
	b.mu.Unlock()

	for _, id := range ids {
		elevators[id].Start(false)
	}
}

// IsRunning reports whether every registered elevator is running. An empty
// bank (no elevators registered yet) reports running.
func (b *Bank) IsRunning() bool {
	b.mu.RLock()
	elevators := make([]*elevator.Elevator, 0, len(b.elevators))
	for _, e := range b.elevators {
		elevators = append(elevators, e)
	}
	b.mu.RUnlock()

	for _, e := range elevators {
		if !e.IsRunning() {
			return false
		}
	}
	return true
}

// Shutdown stops every elevator. A bounded context guards against a single
// elevator's Shutdown hanging the whole bank.
func (b *Bank) Shutdown(ctx context.Context) {
	b.logger.Info("shutting down bank")

	b.mu.Lock()
	b.running = false
	ids := make([]string, len(b.order))
	copy(ids, b.order)
	elevators := make(map[string]*elevator.Elevator, len(b.elevators))
	for k, v := range b.elevators {
		elevators[k] = v
	}
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		for _, id := range ids {
			elevators[id].Shutdown()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		b.logger.Error("bank shutdown timed out", slog.String("error", ctx.Err().Error()))
	}

	b.logger.Info("bank shutdown completed")
}

// ShutdownWithTimeout is a convenience wrapper around Shutdown for callers
// that don't already carry a context (e.g. an OS signal handler).
func (b *Bank) ShutdownWithTimeout(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	b.Shutdown(ctx)
}
