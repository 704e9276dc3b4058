// Package risk sizes a candidate trade and accepts or rejects it before
// any lifecycle action. Evaluate is pure: stateless, idempotent and free of
// side effects, so callers may invoke it repeatedly with the same inputs.
package risk

import (
	"math"

	"github.com/rustyeddy/decider/market"
)

// Policy holds the hard limits a trade must clear.
type Policy struct {
	RiskPct         float64 // fraction of equity at risk per trade
	MaxLeverage     float64 // notional / equity hard cap
	MinStopDistance float64 // epsilon floor for entry-stop distance
	DailyLossCapPct float64 // fraction of equity; mirrors the account gate
}

// DefaultPolicy returns the limits the engine trades with out of the box.
func DefaultPolicy() Policy {
	return Policy{
		RiskPct:         0.01,
		MaxLeverage:     5.0,
		MinStopDistance: 1e-6,
		DailyLossCapPct: 0.03,
	}
}

// Rejection reasons, in evaluation order. The leverage check runs last,
// after position size is computed.
const (
	ReasonDailyLossCap    = "daily_loss_cap_reached"
	ReasonNoSignal        = "no_signal"
	ReasonMissingStop     = "missing_stop_loss"
	ReasonInvalidStopDist = "invalid_stop_distance"
	ReasonLeverageCap     = "leverage_exceeds_cap"
)

// Decision is the outcome of a risk evaluation. Rejections are first-class
// outcomes, not errors: Allowed is false and Reason names the first gate
// that failed.
type Decision struct {
	Allowed bool
	Reason  string

	Direction    int
	EntryPrice   float64
	StopLoss     float64
	StopDistance float64
	RiskAmount   float64
	PositionSize float64
	Notional     float64
	Leverage     float64

	// Pass-through from the enriched bar, untouched.
	TradeQuality *float64
	Confidence   *float64
}

func blocked(reason string) Decision {
	return Decision{Reason: reason}
}

// Evaluate sizes a trade off the latest enriched bar against current
// equity and today's realized PnL.
func Evaluate(bar market.Bar, equity, realizedPnLToday float64, p Policy) Decision {
	if realizedPnLToday <= -equity*p.DailyLossCapPct {
		return blocked(ReasonDailyLossCap)
	}

	if bar.FinalSignal == 0 {
		return blocked(ReasonNoSignal)
	}

	if bar.StopLoss == nil || math.IsNaN(*bar.StopLoss) {
		return blocked(ReasonMissingStop)
	}

	entry := bar.Close
	stop := *bar.StopLoss

	stopDistance := math.Abs(entry - stop)
	if stopDistance <= p.MinStopDistance {
		return blocked(ReasonInvalidStopDist)
	}

	riskAmount := equity * p.RiskPct
	positionSize := riskAmount / stopDistance
	notional := positionSize * entry
	leverage := notional / equity

	if leverage > p.MaxLeverage {
		d := blocked(ReasonLeverageCap)
		d.Leverage = leverage
		return d
	}

	return Decision{
		Allowed:      true,
		Direction:    bar.FinalSignal,
		EntryPrice:   entry,
		StopLoss:     stop,
		StopDistance: stopDistance,
		RiskAmount:   riskAmount,
		PositionSize: positionSize,
		Notional:     notional,
		Leverage:     leverage,
		TradeQuality: bar.TradeQuality,
		Confidence:   bar.Confidence,
	}
}

// RMultiple is realized PnL divided by the risk amount staked at entry.
func RMultiple(pnl, riskAmount float64) float64 {
	if riskAmount == 0 {
		return 0
	}
	return pnl / riskAmount
}
