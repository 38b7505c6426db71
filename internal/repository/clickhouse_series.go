package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"

	"FinScore/internal/domain/models"
	domrepo "FinScore/internal/domain/repository"
	"FinScore/internal/services/features"
	pkgch "FinScore/pkg/clickhouse"
	applogger "FinScore/pkg/logger"
)

// ClickHouse server error codes mapped onto the domain taxonomy.
const (
	chTimeoutExceeded            = 159
	chQuotaExceeded              = 201
	chTooManySimultaneousQueries = 202
)

// retryAfterOnThrottle is the hint attached when ClickHouse sheds load.
const retryAfterOnThrottle = 500 * time.Millisecond

// Tables names the ClickHouse tables the store reads.
type Tables struct {
	Bars         string
	Fundamentals string
	CapitalFlow  string
}

// CHSeriesStore serves price history, fundamentals and capital flow from
// ClickHouse.
type CHSeriesStore struct {
	db     *sql.DB
	tables Tables
	l      *applogger.Logger
}

var (
	_ domrepo.MarketDataProvider  = (*CHSeriesStore)(nil)
	_ domrepo.FundamentalProvider = (*CHSeriesStore)(nil)
)

func NewCHSeriesStore(client *pkgch.Client, tables Tables) *CHSeriesStore {
	return &CHSeriesStore{db: client.DB(), tables: tables, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *CHSeriesStore) SetLogger(l *applogger.Logger) { s.l = l }

// SchemaStatements returns idempotent DDL for the store's tables.
func SchemaStatements(t Tables) []string {
	return []string{
		fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            symbol    LowCardinality(String),
            timeframe LowCardinality(String),
            ts        DateTime64(3, 'UTC'),
            open      Float64,
            high      Float64,
            low       Float64,
            close     Float64,
            volume    Float64
        ) ENGINE = ReplacingMergeTree
        PARTITION BY toYYYYMM(ts)
        ORDER BY (symbol, timeframe, ts)`, t.Bars),
		fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            symbol         LowCardinality(String),
            name           String,
            industry       LowCardinality(String),
            pe             Float64,
            pb             Float64,
            roe            Float64,
            market_cap     Float64,
            revenue_growth Float64,
            updated_at     DateTime64(3, 'UTC')
        ) ENGINE = ReplacingMergeTree(updated_at)
        ORDER BY symbol`, t.Fundamentals),
		fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            symbol       LowCardinality(String),
            ts           DateTime64(3, 'UTC'),
            main_net     Float64,
            retail_net   Float64,
            total_net    Float64,
            main_net_pct Float64
        ) ENGINE = ReplacingMergeTree
        PARTITION BY toYYYYMM(ts)
        ORDER BY (symbol, ts)`, t.CapitalFlow),
	}
}

func (s *CHSeriesStore) FetchSeries(ctx context.Context, symbol string, rng models.DateRange, tf models.Timeframe) (*models.PriceSeries, error) {
	start := time.Now()
	rng = features.AlignRange(rng, tf)
	const qtpl = `
        SELECT ts, open, high, low, close, volume
        FROM %s FINAL
        WHERE symbol = ? AND timeframe = ? AND ts >= ? AND ts <= ?
        ORDER BY ts ASC
    `
	q := fmt.Sprintf(qtpl, s.tables.Bars)
	rows, err := s.db.QueryContext(ctx, q, symbol, string(tf), rng.From, rng.To)
	if err != nil {
		s.l.Error("clickhouse fetch_series query error",
			applogger.String("symbol", symbol),
			applogger.String("tf", string(tf)),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("fetch series %s: %w", symbol, classify(err))
	}
	defer rows.Close()

	bars, err := scanBars(rows)
	if err != nil {
		return nil, fmt.Errorf("fetch series %s: %w", symbol, classify(err))
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no %s bars for %s between %s and %s: %w",
			tf, symbol, rng.From.Format(time.RFC3339), rng.To.Format(time.RFC3339), models.ErrDataUnavailable)
	}
	s.l.Debug("clickhouse fetch_series ok",
		applogger.String("symbol", symbol),
		applogger.String("tf", string(tf)),
		applogger.Int("rows", len(bars)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return models.NewPriceSeries(symbol, string(tf), bars)
}

func (s *CHSeriesStore) FetchFundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error) {
	const qtpl = `
        SELECT symbol, name, industry, pe, pb, roe, market_cap, revenue_growth, updated_at
        FROM %s FINAL
        WHERE symbol = ?
        LIMIT 1
    `
	f := &models.Fundamentals{}
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(qtpl, s.tables.Fundamentals), symbol).Scan(
		&f.Symbol, &f.Name, &f.Industry, &f.PE, &f.PB, &f.ROE, &f.MarketCap, &f.RevenueGrowth, &f.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("fundamentals %s: %w", symbol, models.ErrDataUnavailable)
	}
	if err != nil {
		return nil, fmt.Errorf("fundamentals %s: %w", symbol, classify(err))
	}
	return f, nil
}

func (s *CHSeriesStore) FetchCapitalFlow(ctx context.Context, symbol string, rng models.DateRange) ([]models.CapitalFlow, error) {
	const qtpl = `
        SELECT ts, main_net, retail_net, total_net, main_net_pct
        FROM %s FINAL
        WHERE symbol = ? AND ts >= ? AND ts <= ?
        ORDER BY ts ASC
    `
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(qtpl, s.tables.CapitalFlow), symbol, rng.From, rng.To)
	if err != nil {
		return nil, fmt.Errorf("capital flow %s: %w", symbol, classify(err))
	}
	defer rows.Close()

	var out []models.CapitalFlow
	for rows.Next() {
		var f models.CapitalFlow
		if err := rows.Scan(&f.Time, &f.MainNet, &f.RetailNet, &f.TotalNet, &f.MainNetPct); err != nil {
			return nil, fmt.Errorf("scan capital flow: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("capital flow %s: %w", symbol, classify(err))
	}
	return out, nil
}

// rowIter is the subset of *sql.Rows used for scanning.
type rowIter interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// scanBars reads ascending rows, keeping the last row of any repeated
// timestamp so NewPriceSeries sees strictly ascending times.
func scanBars(rows rowIter) ([]models.Bar, error) {
	out := make([]models.Bar, 0, 256)
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Time, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		if n := len(out); n > 0 && !b.Time.After(out[n-1].Time) {
			if b.Time.Equal(out[n-1].Time) {
				out[n-1] = b
			}
			continue
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// classify maps ClickHouse throttling and timeouts onto domain errors.
func classify(err error) error {
	var ex *ch.Exception
	if errors.As(err, &ex) {
		switch ex.Code {
		case chQuotaExceeded, chTooManySimultaneousQueries:
			return &models.RateLimitError{RetryAfter: retryAfterOnThrottle, Message: ex.Message}
		case chTimeoutExceeded:
			return fmt.Errorf("%s: %w", ex.Message, models.ErrTimeout)
		}
	}
	return err
}
