package storage

import "time"

// Watch is a tracked instrument and its trigger levels.
type Watch struct {
	Ticker        string    `json:"ticker"`
	Levels        []float64 `json:"levels"`
	Enabled       bool      `json:"enabled"`
	LastAlertHash *string   `json:"last_alert_hash"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers cannot alias stored slices or pointers.
func (w Watch) Clone() Watch {
	out := w
	if w.Levels != nil {
		out.Levels = append([]float64(nil), w.Levels...)
	}
	if w.LastAlertHash != nil {
		hash := *w.LastAlertHash
		out.LastAlertHash = &hash
	}
	return out
}

// PriceSnapshot is the last known quote for an instrument.
type PriceSnapshot struct {
	Ticker      string    `json:"ticker"`
	Price       float64   `json:"price"`
	AsOf        time.Time `json:"asof"`
	Currency    string    `json:"currency"`
	Exchange    string    `json:"exchange"`
	Timezone    string    `json:"timezone"`
	MarketState string    `json:"market_state,omitempty"`
	OpenPrice   *float64  `json:"open_price,omitempty"`
}

// Clone returns a deep copy of the snapshot.
func (p PriceSnapshot) Clone() PriceSnapshot {
	out := p
	if p.OpenPrice != nil {
		open := *p.OpenPrice
		out.OpenPrice = &open
	}
	return out
}
