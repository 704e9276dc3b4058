package lifecycle

import "time"

// Event kinds emitted by the state machine.
const (
	EventOpen    = "OPEN"
	EventClosed  = "CLOSED"
	EventBlocked = "BLOCKED"
)

// Event is one lifecycle outcome for a symbol in a cycle. BLOCKED events
// carry the account-gate reason and no position; OPEN and CLOSED carry the
// position snapshot as of the transition.
type Event struct {
	State     string    `json:"state"`
	Symbol    string    `json:"symbol"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Position  *Position `json:"position,omitempty"`
}
