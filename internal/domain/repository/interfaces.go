package repository

import (
	"context"

	"FinScore/internal/domain/models"
)

// MarketDataProvider returns price history for one symbol. Implementations
// return models.ErrDataUnavailable when nothing is stored for the range and a
// *models.RateLimitError when throttled.
type MarketDataProvider interface {
	FetchSeries(ctx context.Context, symbol string, rng models.DateRange, tf models.Timeframe) (*models.PriceSeries, error)
}

// FundamentalProvider serves slow-moving company data used by profiles.
type FundamentalProvider interface {
	FetchFundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error)
	FetchCapitalFlow(ctx context.Context, symbol string, rng models.DateRange) ([]models.CapitalFlow, error)
}

// MarketStore is a backend that serves both price history and fundamentals.
type MarketStore interface {
	MarketDataProvider
	FundamentalProvider
}

// ResultPublisher ships finished scans downstream.
type ResultPublisher interface {
	PublishScan(ctx context.Context, res *models.ScanResult) error
	Close() error
}

type Metrics interface {
	RecordCacheLookup(layer, result string)
	RecordCacheEviction(n int)
	RecordScanSymbol(status, reason string)
	RecordProviderRetry(reason string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}

// NopMetrics discards every observation.
type NopMetrics struct{}

func (NopMetrics) RecordCacheLookup(string, string) {}
func (NopMetrics) RecordCacheEviction(int)          {}
func (NopMetrics) RecordScanSymbol(string, string)  {}
func (NopMetrics) RecordProviderRetry(string)       {}
func (NopMetrics) RecordError(string)               {}
func (NopMetrics) RecordLatency(string, float64)    {}
