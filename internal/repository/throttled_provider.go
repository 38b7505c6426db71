package repository

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"FinScore/internal/domain/models"
	domrepo "FinScore/internal/domain/repository"
)

// ThrottledProvider caps the call rate into the wrapped provider. Callers
// wait for a token, bounded by their context.
type ThrottledProvider struct {
	next    domrepo.MarketDataProvider
	limiter *rate.Limiter
}

var _ domrepo.MarketDataProvider = (*ThrottledProvider)(nil)

func NewThrottledProvider(next domrepo.MarketDataProvider, perSecond float64, burst int) *ThrottledProvider {
	if burst < 1 {
		burst = 1
	}
	return &ThrottledProvider{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (p *ThrottledProvider) FetchSeries(ctx context.Context, symbol string, rng models.DateRange, tf models.Timeframe) (*models.PriceSeries, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		// Wait fails early when the deadline cannot accommodate a token
		if ctx.Err() == nil {
			return nil, fmt.Errorf("throttle %s: %w", symbol, models.ErrTimeout)
		}
		return nil, fmt.Errorf("throttle %s: %w", symbol, ctx.Err())
	}
	return p.next.FetchSeries(ctx, symbol, rng, tf)
}
