// Package market holds the bar data model and the Binance-backed rolling
// candle cache the engine runs on.
package market

import "time"

// Bar is one OHLCV candle plus the enrichment fields the signal pipeline
// writes into it. The decision engine only ever reads an enriched bar.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`

	// Enrichment, absent until the indicator pass has run.
	FinalSignal  int      `json:"final_signal,omitempty"`
	Confidence   *float64 `json:"confidence,omitempty"`
	TradeQuality *float64 `json:"trade_quality,omitempty"`
	StopLoss     *float64 `json:"stop_loss,omitempty"`
}

// Series is a time-ordered run of bars for one symbol.
type Series struct {
	Symbol string `json:"symbol"`
	Bars   []Bar  `json:"bars"`
}

func (s *Series) Len() int { return len(s.Bars) }

func (s *Series) Empty() bool { return len(s.Bars) == 0 }

// Last returns the most recent bar. Callers must check Empty first.
func (s *Series) Last() Bar { return s.Bars[len(s.Bars)-1] }

// LastTime returns the timestamp identity of the most recent bar, which is
// what the candle gate keys on.
func (s *Series) LastTime() time.Time { return s.Bars[len(s.Bars)-1].Time }

// Closes returns the close column, which most indicators consume.
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}
