package cache

import (
	"time"

	"FinScore/internal/domain/models"
	pkgcache "FinScore/pkg/cache"
)

// KeyPrefix namespaces analysis results in every layer.
const KeyPrefix = "analysis"

// Key identifies one analysis: the same symbol with different params or
// windows is a different entry.
type Key struct {
	Symbol      string
	Window      string
	Fingerprint string
}

// NewKey builds the key for an analysis request.
func NewKey(symbol string, w models.Window, p models.Params) Key {
	return Key{Symbol: models.NormalizeSymbol(symbol), Window: w.ID(), Fingerprint: p.Fingerprint()}
}

func (k Key) String() string {
	return pkgcache.GenerateKeyWithParams(KeyPrefix, k.Symbol, k.Window, k.Fingerprint)
}

// Entry is one cached analysis with its validity bounds.
type Entry struct {
	Key       Key                    `json:"key"`
	Value     *models.AnalysisResult `json:"value"`
	CreatedAt time.Time              `json:"created_at"`
	ExpiresAt time.Time              `json:"expires_at"`
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Entries            int    `json:"entries"`
	Capacity           int    `json:"capacity"`
	Hits               uint64 `json:"hits"`
	Misses             uint64 `json:"misses"`
	L2Hits             uint64 `json:"l2_hits"`
	L2Errors           uint64 `json:"l2_errors"`
	Computations       uint64 `json:"computations"`
	Coalesced          uint64 `json:"coalesced"`
	Evictions          uint64 `json:"evictions"`
	Invalidations      uint64 `json:"invalidations"`
	StaleWritesDropped uint64 `json:"stale_writes_dropped"`
	Generation         uint64 `json:"generation"`
	L2Enabled          bool   `json:"l2_enabled"`
}
