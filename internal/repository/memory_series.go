package repository

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sync"
	"time"

	"FinScore/internal/domain/models"
	domrepo "FinScore/internal/domain/repository"
)

// MemorySeriesStore is an in-process provider. Stored series are served
// as-is; unknown symbols get a deterministic synthetic walk when Synthetic is
// set, otherwise ErrDataUnavailable.
type MemorySeriesStore struct {
	Synthetic bool

	mu           sync.RWMutex
	bars         map[string][]models.Bar
	fundamentals map[string]models.Fundamentals
	flows        map[string][]models.CapitalFlow
}

var (
	_ domrepo.MarketDataProvider  = (*MemorySeriesStore)(nil)
	_ domrepo.FundamentalProvider = (*MemorySeriesStore)(nil)
)

func NewMemorySeriesStore(synthetic bool) *MemorySeriesStore {
	return &MemorySeriesStore{
		Synthetic:    synthetic,
		bars:         make(map[string][]models.Bar),
		fundamentals: make(map[string]models.Fundamentals),
		flows:        make(map[string][]models.CapitalFlow),
	}
}

func seriesKey(symbol string, tf models.Timeframe) string { return symbol + "|" + string(tf) }

// PutBars stores bars for symbol at tf. Bars must be ascending.
func (m *MemorySeriesStore) PutBars(symbol string, tf models.Timeframe, bars []models.Bar) {
	cp := make([]models.Bar, len(bars))
	copy(cp, bars)
	m.mu.Lock()
	m.bars[seriesKey(models.NormalizeSymbol(symbol), tf)] = cp
	m.mu.Unlock()
}

func (m *MemorySeriesStore) PutFundamentals(f models.Fundamentals) {
	m.mu.Lock()
	m.fundamentals[models.NormalizeSymbol(f.Symbol)] = f
	m.mu.Unlock()
}

func (m *MemorySeriesStore) PutCapitalFlow(symbol string, flows []models.CapitalFlow) {
	m.mu.Lock()
	m.flows[models.NormalizeSymbol(symbol)] = append([]models.CapitalFlow(nil), flows...)
	m.mu.Unlock()
}

func (m *MemorySeriesStore) FetchSeries(ctx context.Context, symbol string, rng models.DateRange, tf models.Timeframe) (*models.PriceSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	stored, ok := m.bars[seriesKey(symbol, tf)]
	m.mu.RUnlock()
	if !ok {
		if !m.Synthetic {
			return nil, fmt.Errorf("memory store %s: %w", symbol, models.ErrDataUnavailable)
		}
		stored = syntheticBars(symbol, rng, tf)
	}

	bars := make([]models.Bar, 0, len(stored))
	for _, b := range stored {
		if rng.Contains(b.Time) {
			bars = append(bars, b)
		}
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("memory store %s in range: %w", symbol, models.ErrDataUnavailable)
	}
	return models.NewPriceSeries(symbol, string(tf), bars)
}

func (m *MemorySeriesStore) FetchFundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	f, ok := m.fundamentals[symbol]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("fundamentals %s: %w", symbol, models.ErrDataUnavailable)
	}
	return &f, nil
}

func (m *MemorySeriesStore) FetchCapitalFlow(ctx context.Context, symbol string, rng models.DateRange) ([]models.CapitalFlow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.CapitalFlow
	for _, f := range m.flows[symbol] {
		if rng.Contains(f.Time) {
			out = append(out, f)
		}
	}
	return out, nil
}

// syntheticBars builds a reproducible walk seeded by the symbol. Daily bars
// skip weekends; bar times are aligned to the timeframe.
func syntheticBars(symbol string, rng models.DateRange, tf models.Timeframe) []models.Bar {
	h := fnv.New64a()
	_, _ = h.Write([]byte(symbol))
	seed := h.Sum64()

	step := tf.Duration()
	first := rng.From.UTC().Truncate(step)
	if first.Before(rng.From) {
		first = first.Add(step)
	}
	price := 20 + float64(seed%180)
	drift := (float64(seed>>8%21) - 10) / 10000
	var out []models.Bar
	i := 0
	for t := first; !t.After(rng.To); t = t.Add(step) {
		if tf == models.TF1d && (t.Weekday() == time.Saturday || t.Weekday() == time.Sunday) {
			continue
		}
		// two incommensurate cycles give swings without randomness
		wave := 0.012*math.Sin(float64(i)/6+float64(seed%7)) + 0.006*math.Sin(float64(i)/2.3)
		open := price
		price = price * (1 + drift + wave/4)
		hi := math.Max(open, price) * 1.006
		lo := math.Min(open, price) * 0.994
		vol := 1e5 * (1 + 0.3*math.Sin(float64(i)/3+float64(seed%5)))
		out = append(out, models.Bar{Time: t, Open: open, High: hi, Low: lo, Close: price, Volume: vol})
		i++
	}
	return out
}
