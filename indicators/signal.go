package indicators

import (
	"github.com/rustyeddy/decider/market"
)

// Config tunes the enrichment pass. Zero values fall back to the defaults
// the engine trades with.
type Config struct {
	RibbonSpans   [3]int  // EMA ribbon spans, fast to slow
	ATRPeriod     int     // ATR window
	DonchianLen   int     // Donchian channel window
	ROCPeriod     int     // momentum lookback
	VolumeLen     int     // volume moving-average window
	DCWMin        float64 // minimum Donchian width, fraction of price
	ATRExpStart   float64 // ATR expansion floor for entries
	VolSpikeMult  float64 // volume multiple over its MA required for entries
	ATRStopMult   float64 // stop distance in ATR-expansion-scaled ATRs
	ConfThreshold float64 // suppress final signal below this confidence
}

func (c Config) withDefaults() Config {
	if c.RibbonSpans == [3]int{} {
		c.RibbonSpans = [3]int{8, 13, 21}
	}
	if c.ATRPeriod == 0 {
		c.ATRPeriod = 14
	}
	if c.DonchianLen == 0 {
		c.DonchianLen = 20
	}
	if c.ROCPeriod == 0 {
		c.ROCPeriod = 3
	}
	if c.VolumeLen == 0 {
		c.VolumeLen = 20
	}
	if c.DCWMin == 0 {
		c.DCWMin = 0.003
	}
	if c.ATRExpStart == 0 {
		c.ATRExpStart = 1.02
	}
	if c.VolSpikeMult == 0 {
		c.VolSpikeMult = 1.5
	}
	if c.ATRStopMult == 0 {
		c.ATRStopMult = 1.5
	}
	return c
}

// Enrich writes final_signal, confidence, trade_quality and stop_loss into
// every bar of the series. Entries require an EMA ribbon turn confirmed by
// momentum, a widening Donchian channel, expanding ATR and a volume spike;
// stops are ATR-scaled and placed against the signal direction.
func Enrich(s *market.Series, cfg Config) {
	if s == nil || s.Empty() {
		return
	}
	cfg = cfg.withDefaults()
	n := s.Len()
	closes := s.Closes()

	volumes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, b := range s.Bars {
		volumes[i] = b.Volume
		highs[i] = b.High
		lows[i] = b.Low
	}

	// EMA ribbon slope score in [-3, 3].
	ribbons := make([][]float64, 3)
	for k, span := range cfg.RibbonSpans {
		ribbons[k] = EMA(closes, span)
	}
	ribbonScore := make([]float64, n)
	for i := 1; i < n; i++ {
		score := 0
		for _, r := range ribbons {
			score += sign(r[i] - r[i-1])
		}
		ribbonScore[i] = float64(score)
	}

	// Momentum, normalized by ATR as a fraction of price.
	atr := ATR(s.Bars, cfg.ATRPeriod)
	atrMA := SMA(atr, cfg.ATRPeriod)
	rocNorm := make([]float64, n)
	for i := cfg.ROCPeriod; i < n; i++ {
		roc := (closes[i] - closes[i-cfg.ROCPeriod]) / (closes[i-cfg.ROCPeriod] + 1e-8)
		rocNorm[i] = roc / (atr[i]/closes[i] + 1e-8)
	}

	// Donchian channel width, slope and close position inside the channel.
	dcHigh := rollingMax(highs, cfg.DonchianLen)
	dcLow := rollingMin(lows, cfg.DonchianLen)
	dcw := make([]float64, n)
	dcPos := make([]float64, n)
	for i := 0; i < n; i++ {
		dcw[i] = (dcHigh[i] - dcLow[i]) / (closes[i] + 1e-8)
		dcPos[i] = clip((closes[i]-dcLow[i])/(dcHigh[i]-dcLow[i]+1e-8), 0, 1)
	}

	volMA := SMA(volumes, cfg.VolumeLen)
	ribbonAbsMax := rollingMax(absSlice(ribbonScore), 100)

	for i := 0; i < n; i++ {
		b := &s.Bars[i]
		b.FinalSignal = 0
		b.Confidence = nil
		b.TradeQuality = nil
		b.StopLoss = nil

		if i == 0 {
			continue
		}

		atrExpansion := atr[i] / (atrMA[i] + 1e-8)

		earlyLong := ribbonScore[i] > 0 && ribbonScore[i-1] <= 0 && rocNorm[i] > 0
		earlyShort := ribbonScore[i] < 0 && ribbonScore[i-1] >= 0 && rocNorm[i] < 0

		structureOK := dcw[i] > cfg.DCWMin &&
			dcw[i] > dcw[i-1] &&
			atrExpansion >= cfg.ATRExpStart &&
			volumes[i] >= volMA[i]*cfg.VolSpikeMult

		signal := 0
		if earlyLong && structureOK {
			signal = 1
		} else if earlyShort && structureOK {
			signal = -1
		}
		if signal == 0 {
			continue
		}

		// Confidence and quality: direction strength from the ribbon,
		// channel position favoring entries near the channel edge that
		// leaves room to run.
		emaNorm := clip(absf(ribbonScore[i])/(ribbonAbsMax[i]+1e-8), 0, 1)
		confDC := 1 - dcPos[i]
		if signal == -1 {
			confDC = dcPos[i]
		}
		regime := clip(atrExpansion/2, 0, 1)

		quality := (0.45*emaNorm + 0.35*regime + 0.20*confDC)
		confidence := (0.5*emaNorm + 0.35*regime + 0.15*confDC) * 100

		stopDist := cfg.ATRStopMult * atr[i] * atrExpansion
		stop := closes[i] - stopDist
		if signal == -1 {
			stop = closes[i] + stopDist
		}

		if cfg.ConfThreshold > 0 && confidence < cfg.ConfThreshold {
			continue
		}

		b.FinalSignal = signal
		b.TradeQuality = ptr(quality)
		b.Confidence = ptr(confidence)
		b.StopLoss = ptr(stop)
	}
}

func absSlice(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = absf(v)
	}
	return out
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func ptr(v float64) *float64 { return &v }
