package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordCacheLookup("l1", "hit")
	r.RecordCacheLookup("l1", "hit")
	r.RecordCacheLookup("l2", "miss")
	r.RecordCacheEviction(3)
	r.RecordScanSymbol("failed", "Timeout")
	r.RecordProviderRetry("RateLimited")
	r.RecordError("cache_l2_set")
	r.RecordLatency("analyze", 0.2)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.cacheLookups.WithLabelValues("l1", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cacheLookups.WithLabelValues("l2", "miss")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.cacheEvictions))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.scanSymbols.WithLabelValues("failed", "Timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.retries.WithLabelValues("RateLimited")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("cache_l2_set")))

	n, err := testutil.GatherAndCount(reg, "finscore_operation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRecordersOnSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
