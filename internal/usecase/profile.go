package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"FinScore/internal/domain/models"
	domrepo "FinScore/internal/domain/repository"
)

// ProfileUseCase bundles an analysis with fundamentals and capital flow.
type ProfileUseCase struct {
	analyzer     SymbolAnalyzer
	fundamentals domrepo.FundamentalProvider
	params       models.Params
	timeout      time.Duration
	now          func() time.Time
}

func NewProfileUseCase(analyzer SymbolAnalyzer, fundamentals domrepo.FundamentalProvider, params models.Params, timeout time.Duration) *ProfileUseCase {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ProfileUseCase{analyzer: analyzer, fundamentals: fundamentals, params: params, timeout: timeout, now: time.Now}
}

type GetProfileParams struct {
	Symbol   string
	Window   models.Window
	FlowDays int
}

// GetProfile fetches the three parts concurrently. A failed part is reported
// in Errors and leaves its field nil; only an invalid request fails the call.
func (uc *ProfileUseCase) GetProfile(ctx context.Context, p GetProfileParams) (*models.Profile, error) {
	symbol := models.NormalizeSymbol(p.Symbol)
	if symbol == "" {
		return nil, &models.ParamError{Field: "symbol", Reason: "required"}
	}
	if p.FlowDays <= 0 {
		p.FlowDays = 20
	}

	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	now := uc.now()
	res := &models.Profile{
		Symbol:    symbol,
		Timestamp: now,
		Errors:    map[string]string{},
	}

	type item struct {
		name string
		val  interface{}
		err  error
	}
	ch := make(chan item, 3)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		v, _, err := uc.analyzer.Analyze(ctx, symbol, p.Window, uc.params)
		ch <- item{"analysis", v, err}
	}()
	if uc.fundamentals != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := uc.fundamentals.FetchFundamentals(ctx, symbol)
			ch <- item{"fundamentals", v, err}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			rng := models.DateRange{From: now.AddDate(0, 0, -p.FlowDays), To: now}
			v, err := uc.fundamentals.FetchCapitalFlow(ctx, symbol, rng)
			ch <- item{"capital_flow", v, err}
		}()
	}

	go func() { wg.Wait(); close(ch) }()

	for it := range ch {
		if it.err != nil {
			// a bad request is the caller's problem, not a partial failure
			if it.name == "analysis" && errors.Is(it.err, models.ErrInvalidParameters) {
				return nil, it.err
			}
			res.Errors[it.name] = it.err.Error()
			continue
		}
		switch it.name {
		case "analysis":
			res.Analysis = it.val.(*models.AnalysisResult)
		case "fundamentals":
			res.Fundamentals = it.val.(*models.Fundamentals)
		case "capital_flow":
			flows := it.val.([]models.CapitalFlow)
			if len(flows) == 0 {
				res.Errors[it.name] = fmt.Sprintf("no capital flow in last %d days", p.FlowDays)
				continue
			}
			s := models.SummarizeFlow(flows)
			res.CapitalFlow = &s
		}
	}

	if len(res.Errors) == 0 {
		res.Errors = nil
	}
	return res, nil
}
