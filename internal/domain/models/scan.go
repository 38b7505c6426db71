package models

import (
	"sort"
	"time"
)

type ScanStatus string

const (
	ScanOK     ScanStatus = "ok"
	ScanFailed ScanStatus = "failed"
)

// ScanEntry is the outcome for one requested symbol.
type ScanEntry struct {
	Symbol           string        `json:"symbol"`
	Status           ScanStatus    `json:"status"`
	Reason           string        `json:"reason,omitempty"`
	Error            string        `json:"error,omitempty"`
	Score            float64       `json:"score"`
	Factors          []FactorScore `json:"factors,omitempty"`
	Partial          bool          `json:"partial,omitempty"`
	Rank             int           `json:"rank,omitempty"`
	RelativeStrength float64       `json:"relative_strength,omitempty"`
	StrengthLevel    string        `json:"strength_level,omitempty"`
	Cached           bool          `json:"cached,omitempty"`
	// Indicators is kept for post-scan aggregation and not serialized.
	Indicators *IndicatorSet `json:"-"`
}

func (e ScanEntry) OK() bool { return e.Status == ScanOK }

// ScanResult has exactly one entry per requested symbol. Ranking holds the ok
// entries at or above MinScore, ordered by score then symbol.
type ScanResult struct {
	ID         string      `json:"id"`
	Requested  int         `json:"requested"`
	MinScore   float64     `json:"min_score"`
	Entries    []ScanEntry `json:"entries"`
	Ranking    []ScanEntry `json:"ranking"`
	Breadth    *Breadth    `json:"breadth,omitempty"`
	Cancelled  bool        `json:"cancelled,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
}

// Failed returns the failed entries.
func (r *ScanResult) Failed() []ScanEntry {
	var out []ScanEntry
	for _, e := range r.Entries {
		if !e.OK() {
			out = append(out, e)
		}
	}
	return out
}

// Entry looks up the entry for symbol.
func (r *ScanResult) Entry(symbol string) (ScanEntry, bool) {
	for _, e := range r.Entries {
		if e.Symbol == symbol {
			return e, true
		}
	}
	return ScanEntry{}, false
}

// ScanProgress is a point-in-time view of a running scan.
type ScanProgress struct {
	ID        string      `json:"id"`
	Total     int         `json:"total"`
	Completed int         `json:"completed"`
	Failed    int         `json:"failed"`
	Done      bool        `json:"done"`
	Cancelled bool        `json:"cancelled"`
	StartedAt time.Time   `json:"started_at"`
	Ranking   []ScanEntry `json:"ranking"`
	Result    *ScanResult `json:"result,omitempty"`
}

// SortRanked orders entries by score descending, then symbol ascending.
func SortRanked(entries []ScanEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Symbol < entries[j].Symbol
	})
}

// RankEntries builds the ranking and the ordered entry list: ranked entries,
// then ok entries below minScore, then failures by symbol.
func RankEntries(entries []ScanEntry, minScore float64) (ordered, ranking []ScanEntry) {
	var above, below, failed []ScanEntry
	for _, e := range entries {
		switch {
		case !e.OK():
			failed = append(failed, e)
		case e.Score >= minScore:
			above = append(above, e)
		default:
			below = append(below, e)
		}
	}
	SortRanked(above)
	SortRanked(below)
	sort.SliceStable(failed, func(i, j int) bool { return failed[i].Symbol < failed[j].Symbol })

	for i := range above {
		above[i].Rank = i + 1
	}
	for i := range below {
		below[i].Rank = 0
	}
	for i := range failed {
		failed[i].Rank = 0
	}

	ordered = make([]ScanEntry, 0, len(entries))
	ordered = append(ordered, above...)
	ordered = append(ordered, below...)
	ordered = append(ordered, failed...)

	ranking = make([]ScanEntry, len(above))
	copy(ranking, above)
	return ordered, ranking
}

// Breadth summarizes how the scanned universe moved on its last bar.
type Breadth struct {
	Total       int     `json:"total"`
	Up          int     `json:"up"`
	Down        int     `json:"down"`
	Flat        int     `json:"flat"`
	UpRatio     float64 `json:"up_ratio"`
	AvgChange   float64 `json:"avg_change"`
	Strong      int     `json:"strong"`
	StrongRatio float64 `json:"strong_ratio"`
	// LimitUp and LimitDown count last-bar moves of at least LimitMovePct.
	LimitUp   int `json:"limit_up"`
	LimitDown int `json:"limit_down"`
	// LimitRatio is LimitUp over all limit moves, nil when there were none.
	LimitRatio *float64 `json:"limit_ratio,omitempty"`
	// MainNetInflow sums the latest main net flow of the ok entries and
	// MoneyFlowSentiment maps it onto [0,1]. Both are nil without flow data.
	MainNetInflow      *float64      `json:"main_net_inflow,omitempty"`
	MoneyFlowSentiment *float64      `json:"money_flow_sentiment,omitempty"`
	SentimentIndex     float64       `json:"sentiment_index"`
	SentimentLevel     string        `json:"sentiment_level"`
	Boards             *BoardSummary `json:"boards,omitempty"`
}

// BoardSummary describes the limit-up streaks of the scanned universe.
type BoardSummary struct {
	// Streaks maps a streak length to the number of symbols on it.
	Streaks   map[int]int `json:"streaks,omitempty"`
	MaxStreak int         `json:"max_streak"`
	// PrevLimitUp counts symbols that closed limit-up one bar earlier and
	// Promoted those of them that did it again, which is every streak of two
	// or more.
	PrevLimitUp   int     `json:"prev_limit_up"`
	Promoted      int     `json:"promoted"`
	PromotionRate float64 `json:"promotion_rate"`
	Heat          string  `json:"heat"`
	HeatScore     int     `json:"heat_score"`
}
