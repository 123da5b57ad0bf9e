package model

import "time"

// Tick represents a single price observation for an instrument,
// already parsed by the upstream feed.
type Tick struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Epoch  int64   `json:"epoch"` // Unix seconds
}

// Time returns the tick timestamp as UTC time.
func (t Tick) Time() time.Time {
	return time.Unix(t.Epoch, 0).UTC()
}

// Valid reports whether the tick has the minimum required shape.
// Ticks missing a symbol, price, or timestamp are counted and dropped,
// never treated as fatal.
func (t Tick) Valid() bool {
	return t.Symbol != "" && t.Price > 0 && t.Epoch > 0
}
