package market

import (
	"fmt"
	"math"
)

// Validate runs structural and sanity checks over a series before the
// engine acts on it. Bad upstream data should fail the symbol's cycle, not
// flow into a trading decision.
func Validate(s *Series) error {
	if s == nil || s.Empty() {
		return fmt.Errorf("empty series")
	}

	for i, b := range s.Bars {
		if b.Time.IsZero() {
			return fmt.Errorf("%s: bar %d has no timestamp", s.Symbol, i)
		}
		for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%s: NaN/Inf at bar %s", s.Symbol, b.Time)
			}
		}
		if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
			return fmt.Errorf("%s: non-positive price at bar %s", s.Symbol, b.Time)
		}
		if b.Volume < 0 {
			return fmt.Errorf("%s: negative volume at bar %s", s.Symbol, b.Time)
		}
		if b.High < b.Low {
			return fmt.Errorf("%s: high < low at bar %s", s.Symbol, b.Time)
		}
		if b.Close > b.High || b.Close < b.Low || b.Open > b.High || b.Open < b.Low {
			return fmt.Errorf("%s: open/close outside high-low range at bar %s", s.Symbol, b.Time)
		}
	}
	return nil
}
