package models

import (
	"fmt"
	"time"
)

// Bar is one OHLCV record for a fixed interval.
type Bar struct {
	Time   time.Time `json:"t"`
	Open   float64   `json:"o"`
	High   float64   `json:"h"`
	Low    float64   `json:"l"`
	Close  float64   `json:"c"`
	Volume float64   `json:"v"`
}

// PriceSeries is an immutable, strictly ascending sequence of bars for one symbol.
type PriceSeries struct {
	symbol    string
	timeframe string
	bars      []Bar
}

// NewPriceSeries copies bars and checks ordering. Values are not checked here;
// the indicator engine decides how to repair non-finite prices.
func NewPriceSeries(symbol, timeframe string, bars []Bar) (*PriceSeries, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("series %s: %w", symbol, ErrDataUnavailable)
	}
	cp := make([]Bar, len(bars))
	copy(cp, bars)
	for i := 1; i < len(cp); i++ {
		if !cp[i].Time.After(cp[i-1].Time) {
			return nil, &ParamError{
				Field:  "bars",
				Reason: fmt.Sprintf("timestamps must be strictly ascending (index %d: %s after %s)", i, cp[i].Time.Format(time.RFC3339), cp[i-1].Time.Format(time.RFC3339)),
			}
		}
	}
	return &PriceSeries{symbol: symbol, timeframe: timeframe, bars: cp}, nil
}

func (s *PriceSeries) Symbol() string    { return s.symbol }
func (s *PriceSeries) Timeframe() string { return s.timeframe }
func (s *PriceSeries) Len() int          { return len(s.bars) }

// Bar returns the i-th bar by value.
func (s *PriceSeries) Bar(i int) Bar { return s.bars[i] }

func (s *PriceSeries) First() Bar { return s.bars[0] }
func (s *PriceSeries) Last() Bar  { return s.bars[len(s.bars)-1] }

// Bars returns a copy of the underlying bars.
func (s *PriceSeries) Bars() []Bar {
	cp := make([]Bar, len(s.bars))
	copy(cp, s.bars)
	return cp
}

// Closes returns a fresh slice of closing prices.
func (s *PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Close
	}
	return out
}

// Tail returns a series holding at most the last n bars.
func (s *PriceSeries) Tail(n int) *PriceSeries {
	if n <= 0 || n >= len(s.bars) {
		return s
	}
	// bars are never mutated, so sharing the backing array is safe
	return &PriceSeries{symbol: s.symbol, timeframe: s.timeframe, bars: s.bars[len(s.bars)-n:]}
}

// DateRange is an inclusive time range.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && !t.After(r.To)
}
