package models

import (
	"fmt"
	"strings"
	"time"
)

// Window identifies the slice of history an analysis is computed over.
type Window struct {
	Timeframe Timeframe `json:"timeframe"`
	Bars      int       `json:"bars"`
	// End is the last timestamp to include; zero means "latest".
	End time.Time `json:"end,omitempty"`
}

// ID is a stable identifier used in cache keys.
func (w Window) ID() string {
	end := "latest"
	if !w.End.IsZero() {
		if w.Timeframe == TF1d {
			end = w.End.UTC().Format("2006-01-02")
		} else {
			end = w.End.UTC().Format("2006-01-02T15:04")
		}
	}
	return fmt.Sprintf("%s:%d:%s", w.Timeframe, w.Bars, end)
}

// Range returns the provider range that should contain at least Bars bars.
func (w Window) Range(now time.Time) DateRange {
	to := w.End
	if to.IsZero() {
		to = now
	}
	return DateRange{From: to.Add(-w.Timeframe.Span(w.Bars)), To: to}
}

func (w Window) Validate() error {
	if !IsValidTimeframe(w.Timeframe) {
		return &ParamError{Field: "timeframe", Reason: fmt.Sprintf("unsupported timeframe %q", w.Timeframe)}
	}
	if w.Bars < 2 || w.Bars > 5000 {
		return &ParamError{Field: "bars", Reason: "must be between 2 and 5000"}
	}
	return nil
}

// AnalysisResult is the cached output of a single-symbol analysis.
type AnalysisResult struct {
	Symbol      string         `json:"symbol"`
	Window      Window         `json:"window"`
	Fingerprint string         `json:"fingerprint"`
	Indicators  IndicatorSet   `json:"indicators"`
	Score       CompositeScore `json:"score"`
	ComputedAt  time.Time      `json:"computed_at"`
}

// NormalizeSymbol trims and upper-cases a ticker.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Fundamentals are slow-moving company fields kept outside the five-factor model.
type Fundamentals struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name,omitempty"`
	Industry      string    `json:"industry,omitempty"`
	PE            float64   `json:"pe"`
	PB            float64   `json:"pb"`
	ROE           float64   `json:"roe"`
	MarketCap     float64   `json:"market_cap"`
	RevenueGrowth float64   `json:"revenue_growth"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CapitalFlow is one period of net money flow for a symbol.
type CapitalFlow struct {
	Time       time.Time `json:"t"`
	MainNet    float64   `json:"main_net"`
	RetailNet  float64   `json:"retail_net"`
	TotalNet   float64   `json:"total_net"`
	MainNetPct float64   `json:"main_net_pct"`
}

// Profile bundles analysis with fundamentals and capital flow. Errors holds
// per-part failures; a failed part leaves its field nil.
type Profile struct {
	Symbol       string            `json:"symbol"`
	Timestamp    time.Time         `json:"timestamp"`
	Analysis     *AnalysisResult   `json:"analysis,omitempty"`
	Fundamentals *Fundamentals     `json:"fundamentals,omitempty"`
	CapitalFlow  *FlowSummary      `json:"capital_flow,omitempty"`
	Errors       map[string]string `json:"errors,omitempty"`
}

// FlowSummary aggregates capital flow over the requested range.
type FlowSummary struct {
	Periods       int     `json:"periods"`
	MainNetSum    float64 `json:"main_net_sum"`
	TotalNetSum   float64 `json:"total_net_sum"`
	InflowDays    int     `json:"inflow_days"`
	OutflowDays   int     `json:"outflow_days"`
	LastMainNet   float64 `json:"last_main_net"`
	AvgMainNetPct float64 `json:"avg_main_net_pct"`
}

// SummarizeFlow folds capital flow records into a FlowSummary.
func SummarizeFlow(flows []CapitalFlow) FlowSummary {
	var s FlowSummary
	s.Periods = len(flows)
	for _, f := range flows {
		s.MainNetSum += f.MainNet
		s.TotalNetSum += f.TotalNet
		s.AvgMainNetPct += f.MainNetPct
		switch {
		case f.MainNet > 0:
			s.InflowDays++
		case f.MainNet < 0:
			s.OutflowDays++
		}
	}
	if len(flows) > 0 {
		s.AvgMainNetPct /= float64(len(flows))
		s.LastMainNet = flows[len(flows)-1].MainNet
	}
	return s
}
