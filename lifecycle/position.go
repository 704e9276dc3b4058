package lifecycle

import "time"

// Position states. A closed position leaves the live map; CLOSED appears
// only on the final snapshot carried by the close event.
const (
	StateOpen   = "OPEN"
	StateClosed = "CLOSED"
)

// Exit reasons, in the priority order they are checked.
const (
	ExitStop           = "STOP"
	ExitOppositeSignal = "OPPOSITE_SIGNAL"
	ExitTimeExpiry     = "TIME_EXPIRY"
)

// Exit records how a position was closed.
type Exit struct {
	ExitPrice  float64   `json:"exit_price"`
	ExitTime   time.Time `json:"exit_time"`
	ExitReason string    `json:"exit_reason"`
	PnL        float64   `json:"pnl"`
}

// Position is one open trade. At most one exists per symbol; the live map
// itself enforces that.
type Position struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Direction  int       `json:"direction"` // +1 long, -1 short
	EntryPrice float64   `json:"entry_price"`
	EntryTime  time.Time `json:"entry_time"`
	StopLoss   *float64  `json:"stop_loss,omitempty"`
	State      string    `json:"state"`
	Exit       *Exit     `json:"exit,omitempty"`
}

// stopHit reports whether price has crossed the recorded stop against the
// position's direction.
func (p *Position) stopHit(price float64) bool {
	if p.StopLoss == nil {
		return false
	}
	if p.Direction > 0 {
		return price <= *p.StopLoss
	}
	return price >= *p.StopLoss
}
