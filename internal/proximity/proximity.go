// Package proximity computes how close a price is to a set of trigger levels.
package proximity

import (
	"errors"
	"fmt"
	"math"
)

// DefaultThreshold is the fractional distance under which a price counts as near a level (0.5%).
const DefaultThreshold = 0.005

// ErrInvalidLevel reports a level that cannot be used as a divisor.
var ErrInvalidLevel = errors.New("proximity: invalid level")

// View is the derived per-instrument status pushed to subscribers and API clients.
type View struct {
	Ticker         string   `json:"ticker"`
	Price          float64  `json:"price"`
	Currency       string   `json:"currency"`
	NearestLevel   *float64 `json:"nearest_level"`
	DistancePct    float64  `json:"distance_pct"`
	Near           bool     `json:"near"`
	OpenPrice      *float64 `json:"open_price"`
	PriceChangePct *float64 `json:"price_change_pct"`
}

// Quote is the subset of a price snapshot the engine needs.
type Quote struct {
	Price     float64
	Currency  string
	OpenPrice *float64
}

// NearestLevel returns the level minimising |price - level|. When two levels
// are equidistant the first one in input order wins.
func NearestLevel(price float64, levels []float64) (float64, bool) {
	if len(levels) == 0 {
		return 0, false
	}
	best := levels[0]
	bestDist := math.Abs(price - best)
	for _, level := range levels[1:] {
		if d := math.Abs(price - level); d < bestDist {
			best, bestDist = level, d
		}
	}
	return best, true
}

// Distance returns |price - level| / level.
func Distance(price, level float64) (float64, error) {
	if level <= 0 || math.IsNaN(level) || math.IsInf(level, 0) {
		return math.Inf(1), fmt.Errorf("%w: %v", ErrInvalidLevel, level)
	}
	return math.Abs(price-level) / level, nil
}

// Near reports whether distance is within threshold, inclusive.
func Near(distance, threshold float64) bool {
	return distance <= threshold
}

// ChangeFromOpen returns the percentage move from the session open, or nil
// when the open is unknown or not positive.
func ChangeFromOpen(price float64, open *float64) *float64 {
	if open == nil || *open <= 0 {
		return nil
	}
	pct := (price - *open) / *open * 100
	return &pct
}

// Engine evaluates instruments against a fixed proximity threshold.
type Engine struct {
	Threshold float64
}

// NewEngine returns an Engine, substituting the default for a non-positive threshold.
func NewEngine(threshold float64) Engine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return Engine{Threshold: threshold}
}

// Evaluate builds the View for one instrument. With no levels the nearest
// level is absent, the distance is zero and the instrument is never near.
func (e Engine) Evaluate(ticker string, quote Quote, levels []float64) (View, error) {
	view := View{
		Ticker:         ticker,
		Price:          quote.Price,
		Currency:       quote.Currency,
		OpenPrice:      quote.OpenPrice,
		PriceChangePct: ChangeFromOpen(quote.Price, quote.OpenPrice),
	}

	level, ok := NearestLevel(quote.Price, levels)
	if !ok {
		return view, nil
	}

	distance, err := Distance(quote.Price, level)
	if err != nil {
		return View{}, fmt.Errorf("evaluate %s: %w", ticker, err)
	}

	view.NearestLevel = &level
	view.DistancePct = distance
	view.Near = Near(distance, e.Threshold)
	return view, nil
}
