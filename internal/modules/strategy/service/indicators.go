package service

import (
	"math"
	"time"

	"intraday_bot/internal/models"
)

const atrPeriod = 14

// dateOf strips the time of day, keeping the exchange timezone.
func dateOf(ts time.Time) time.Time {
	y, m, d := ts.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, ts.Location())
}

// Indicators is the per-bar snapshot the engine decides on.
type Indicators struct {
	VWAP           float64
	ATR            float64
	AboveVWAPCount int
	BelowVWAPCount int
}

// indicatorSet accumulates indicators for one symbol. VWAP and the
// above/below counters restart each trading day; ATR is a Wilder
// average and keeps its memory across days.
type indicatorSet struct {
	day         time.Time
	accVolume   float64
	accTurnover float64
	vwap        float64
	aboveVWAP   int
	belowVWAP   int

	prevClose    float64
	hasPrevClose bool
	trSeed       []float64
	atr          float64
	seeded       bool
}

func newIndicatorSet() *indicatorSet {
	return &indicatorSet{}
}

func (s *indicatorSet) UpdateBar(b models.Bar) Indicators {
	day := dateOf(b.Start)
	if !day.Equal(s.day) {
		s.day = day
		s.accVolume = 0
		s.accTurnover = 0
		s.vwap = 0
		s.aboveVWAP = 0
		s.belowVWAP = 0
	}

	s.accVolume += b.Volume
	s.accTurnover += b.Turnover
	if s.accVolume > 0 {
		s.vwap = s.accTurnover / s.accVolume
	} else {
		s.vwap = 0
	}

	if b.Close > s.vwap {
		s.aboveVWAP++
	} else if b.Close < s.vwap {
		s.belowVWAP++
	}

	s.updateATR(b)

	return Indicators{
		VWAP:           s.vwap,
		ATR:            s.atr,
		AboveVWAPCount: s.aboveVWAP,
		BelowVWAPCount: s.belowVWAP,
	}
}

// updateATR maintains a Wilder ATR: the first atrPeriod true ranges
// seed a simple mean, after which atr = (tr + atr*13) / 14. The very
// first bar has no previous close and contributes no true range, so
// the value stays 0 until atrPeriod+1 bars have been seen.
func (s *indicatorSet) updateATR(b models.Bar) {
	if !s.hasPrevClose {
		s.prevClose = b.Close
		s.hasPrevClose = true
		return
	}

	tr := b.High - b.Low
	if hc := math.Abs(b.High - s.prevClose); hc > tr {
		tr = hc
	}
	if lc := math.Abs(b.Low - s.prevClose); lc > tr {
		tr = lc
	}
	s.prevClose = b.Close

	if s.seeded {
		s.atr = (tr + s.atr*float64(atrPeriod-1)) / float64(atrPeriod)
		return
	}

	s.trSeed = append(s.trSeed, tr)
	if len(s.trSeed) == atrPeriod {
		var sum float64
		for _, v := range s.trSeed {
			sum += v
		}
		s.atr = sum / float64(atrPeriod)
		s.seeded = true
		s.trSeed = nil
	}
}
