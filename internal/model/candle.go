package model

import (
	"encoding/json"
	"strconv"
)

// Candle represents a fixed-interval OHLC bar for a single instrument.
// PeriodStart is bucket-aligned: epoch - epoch%granularity.
// Invariant: High >= max(Open, Close, Low) and Low <= min(Open, Close, High).
type Candle struct {
	Symbol      string  `json:"symbol"`
	Granularity int     `json:"granularity"` // period length in seconds
	PeriodStart int64   `json:"period_start"`
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Close       float64 `json:"close"`
	TickCount   int     `json:"tick_count"`
}

// Key returns a unique key for this candle's series: "symbol:granularity".
func (c *Candle) Key() string {
	return c.Symbol + ":" + strconv.Itoa(c.Granularity)
}

// Field returns the stringified period start used as the snapshot map key.
func (c *Candle) Field() string {
	return strconv.FormatInt(c.PeriodStart, 10)
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}
