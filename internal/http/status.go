package http

import (
	"github.com/slavakukuyev/elevator-go/internal/bank"
)

// elevatorStatus is the JSON shape sent over the WebSocket status feeds
// (server.go's /ws/status and the standalone WebSocketServer), one entry per
// elevator.
type elevatorStatus struct {
	Name           string `json:"name"`
	State          string `json:"state"`
	CurrentFloor   *int   `json:"current_floor,omitempty"`
	TravelFrom     *int   `json:"travel_from,omitempty"`
	TravelTo       *int   `json:"travel_to,omitempty"`
	PushedButtons  []int  `json:"pushed_buttons"`
	RunningRequest bool   `json:"is_running,omitempty"`
}

// bankStatus snapshots every registered elevator for the WebSocket feed.
func bankStatus(b *bank.Bank) map[string]interface{} {
	states := b.GetAllElevatorStates()
	buttons := b.GetAllPushedButtons()

	elevators := make(map[string]elevatorStatus, len(states))
	for id, st := range states {
		es := elevatorStatus{
			Name:          id,
			State:         st.Kind.String(),
			PushedButtons: buttons[id],
		}
		if floor, ok := st.CurrentFloor(); ok {
			es.CurrentFloor = &floor
		}
		if from, to, ok := st.Travel(); ok {
			es.TravelFrom = &from
			es.TravelTo = &to
		}
		elevators[id] = es
	}

	return map[string]interface{}{
		"elevators": elevators,
		"running":   b.IsRunning(),
	}
}
