// Package cabio models the physical side of a single elevator car as a
// four-state discrete-event machine: Idle, MovingUp, MovingDown, DoorsOpen.
// Commands (move, open_doors) are accepted or rejected based on the current
// state, and every state transition schedules at most one pending timer.
package cabio

import (
	"log/slog"
	"sync"
	"time"

	"github.com/slavakukuyev/elevator-go/internal/domain"
)

// Kind identifies which of the four state variants a State holds.
type Kind int

const (
	Idle Kind = iota
	MovingUp
	MovingDown
	DoorsOpen
)

func (k Kind) String() string {
	switch k {
	case Idle:
		return "idle"
	case MovingUp:
		return "moving_up"
	case MovingDown:
		return "moving_down"
	case DoorsOpen:
		return "doors_open"
	default:
		return "unknown"
	}
}

// State is an immutable snapshot of the IO machine. Fields are only
// meaningful for certain Kinds: AtFloor for Idle/DoorsOpen, From/To for
// MovingUp/MovingDown. Use the accessor methods rather than reading fields
// directly so a caller never has to know which fields apply to which Kind.
type State struct {
	Kind      Kind
	AtFloor   int
	From      int
	To        int
	StartTime time.Time
	DueTime   time.Time
}

// CurrentFloor returns the floor this state carries, valid for Idle and
// DoorsOpen only.
func (s State) CurrentFloor() (int, bool) {
	if s.Kind == Idle || s.Kind == DoorsOpen {
		return s.AtFloor, true
	}
	return 0, false
}

// Travel returns the (from, to) endpoints of an in-progress move, valid for
// MovingUp and MovingDown only.
func (s State) Travel() (from, to int, ok bool) {
	if s.Kind == MovingUp || s.Kind == MovingDown {
		return s.From, s.To, true
	}
	return 0, 0, false
}

// EventKind distinguishes the "any transition" change event from the
// per-state-type events fired alongside it.
type EventKind int

const (
	EventChange EventKind = iota
	EventIdle
	EventMovingUp
	EventMovingDown
	EventDoorsOpen
)

// Event is delivered to every IO listener on each state transition: one
// EventChange, then one event matching the new state's Kind.
type Event struct {
	Kind EventKind
	From State
	To   State
}

func eventKindForState(k Kind) EventKind {
	switch k {
	case Idle:
		return EventIdle
	case MovingUp:
		return EventMovingUp
	case MovingDown:
		return EventMovingDown
	case DoorsOpen:
		return EventDoorsOpen
	default:
		return EventChange
	}
}

// Config carries the two timing constants the machine schedules transitions
// against.
type Config struct {
	TravelTimePerFloor time.Duration
	DoorOpenTime       time.Duration
}

type listener struct {
	id int
	fn func(Event)
}

// IO is the state machine for a single elevator car. All exported methods
// are safe for concurrent use.
type IO struct {
	mu        sync.Mutex
	state     State
	timer     *time.Timer
	listeners []listener
	nextID    int
	cfg       Config
	logger    *slog.Logger
	shutdown  bool
}

// New returns an IO starting Idle at initialFloor.
func New(initialFloor int, cfg Config, logger *slog.Logger) *IO {
	if logger == nil {
		logger = slog.Default()
	}
	return &IO{
		state:  State{Kind: Idle, AtFloor: initialFloor, StartTime: time.Now()},
		cfg:    cfg,
		logger: logger.With(slog.String("component", "cabio")),
	}
}

// CurrentState returns a defensive copy of the machine's current state.
func (io *IO) CurrentState() State {
	io.mu.Lock()
	defer io.mu.Unlock()
	return io.state
}

// CurrentFloor returns the floor a decision step should reason from: the
// state's own floor when Idle or DoorsOpen, or the destination floor of an
// in-progress move. This lets callers (Elevator, Strategy) always have a
// floor to plan against, even mid-travel.
func (io *IO) CurrentFloor() int {
	io.mu.Lock()
	defer io.mu.Unlock()
	if f, ok := io.state.CurrentFloor(); ok {
		return f
	}
	_, to, _ := io.state.Travel()
	return to
}

// Subscribe registers fn to be called, synchronously and in registration
// order, on every state transition. Returns an unsubscribe function.
func (io *IO) Subscribe(fn func(Event)) func() {
	io.mu.Lock()
	id := io.nextID
	io.nextID++
	io.listeners = append(io.listeners, listener{id: id, fn: fn})
	io.mu.Unlock()

	return func() {
		io.mu.Lock()
		defer io.mu.Unlock()
		for i, l := range io.listeners {
			if l.id == id {
				io.listeners = append(io.listeners[:i], io.listeners[i+1:]...)
				return
			}
		}
	}
}

// Move starts a travel of n floors (n > 0 moves up, n < 0 moves down).
// Valid only from Idle; n == 0 is always rejected.
func (io *IO) Move(n int) error {
	io.mu.Lock()
	if n == 0 {
		io.mu.Unlock()
		return domain.NewInvalidStateTransitionError("move(0)", io.state.Kind.String())
	}
	if io.state.Kind != Idle {
		kind := io.state.Kind.String()
		io.mu.Unlock()
		return domain.NewInvalidStateTransitionError("move", kind)
	}

	old := io.state
	from := old.AtFloor
	to := from + n
	kind := MovingUp
	if n < 0 {
		kind = MovingDown
	}
	now := time.Now()
	due := now.Add(time.Duration(absInt(n)) * io.cfg.TravelTimePerFloor)
	io.state = State{Kind: kind, From: from, To: to, StartTime: now, DueTime: due}

	io.scheduleLocked(due, false, func() {
		io.transitionAndEmit(State{Kind: Idle, AtFloor: to, StartTime: due})
	})
	newState := io.state
	io.mu.Unlock()

	io.emit(old, newState)
	return nil
}

// OpenDoors opens the doors, holding them for Cfg.DoorOpenTime. Valid from
// Idle or DoorsOpen; calling it again while already DoorsOpen extends the
// hold from now, replacing the pending close timer.
func (io *IO) OpenDoors() error {
	io.mu.Lock()
	if io.state.Kind != Idle && io.state.Kind != DoorsOpen {
		kind := io.state.Kind.String()
		io.mu.Unlock()
		return domain.NewInvalidStateTransitionError("open_doors", kind)
	}

	old := io.state
	replacing := old.Kind == DoorsOpen
	atFloor := old.AtFloor
	now := time.Now()
	due := now.Add(io.cfg.DoorOpenTime)
	io.state = State{Kind: DoorsOpen, AtFloor: atFloor, StartTime: now, DueTime: due}

	io.scheduleLocked(due, replacing, func() {
		io.transitionAndEmit(State{Kind: Idle, AtFloor: atFloor, StartTime: due})
	})
	newState := io.state
	io.mu.Unlock()

	io.emit(old, newState)
	return nil
}

// scheduleLocked installs fn as the single pending timer, due at due.
// replace must be true if a timer is already pending and this call intends
// to cancel and supersede it (e.g. extending a door hold); otherwise a
// pending timer causes this call to be refused and logged, since the
// single-pending-timer invariant would otherwise be violated silently.
func (io *IO) scheduleLocked(due time.Time, replace bool, fn func()) {
	if io.timer != nil {
		if !replace {
			io.logger.Warn("refusing to schedule transition: a timer is already pending",
				slog.Time("due", due))
			return
		}
		io.timer.Stop()
		io.timer = nil
	}

	delay := time.Until(due)
	if delay < 0 {
		delay = 0
	}
	io.timer = time.AfterFunc(delay, func() {
		io.mu.Lock()
		io.timer = nil
		shutdown := io.shutdown
		io.mu.Unlock()
		if shutdown {
			return
		}
		fn()
	})
}

// transitionAndEmit installs newState and emits the resulting events. Used
// by scheduled timer callbacks, which run outside any caller-held lock.
func (io *IO) transitionAndEmit(newState State) {
	io.mu.Lock()
	old := io.state
	io.state = newState
	io.mu.Unlock()
	io.emit(old, newState)
}

// emit delivers Event{EventChange} followed by the per-Kind event to every
// listener, holding no lock while doing so: a listener is free to call back
// into Move/OpenDoors/Subscribe without deadlocking.
func (io *IO) emit(from, to State) {
	io.mu.Lock()
	ls := make([]listener, len(io.listeners))
	copy(ls, io.listeners)
	io.mu.Unlock()

	change := Event{Kind: EventChange, From: from, To: to}
	for _, l := range ls {
		l.fn(change)
	}
	kindEvent := Event{Kind: eventKindForState(to.Kind), From: from, To: to}
	for _, l := range ls {
		l.fn(kindEvent)
	}
}

// Shutdown cancels any pending timer and removes all listeners. A timer
// callback already in flight observes the shutdown flag and becomes a
// no-op rather than firing a transition.
func (io *IO) Shutdown() {
	io.mu.Lock()
	defer io.mu.Unlock()
	io.shutdown = true
	io.listeners = nil
	if io.timer != nil {
		io.timer.Stop()
		io.timer = nil
	}
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
