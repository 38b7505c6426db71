package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowConsumesAndRefills(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(2, 0.5).WithClock(func() time.Time { return now })

	ok, _ := l.Allow("a")
	assert.True(t, ok)
	ok, _ = l.Allow("a")
	assert.True(t, ok)
	ok, wait := l.Allow("a")
	assert.False(t, ok)
	assert.Equal(t, 2*time.Second, wait)

	ok, _ = l.Allow("b")
	assert.True(t, ok, "keys are independent")

	now = now.Add(2 * time.Second)
	ok, _ = l.Allow("a")
	assert.True(t, ok)
}

func TestPruneDropsFullBuckets(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(1, 1).WithClock(func() time.Time { return now })
	l.Allow("a")
	l.Allow("b")
	assert.Equal(t, 0, l.Prune())

	now = now.Add(time.Second)
	assert.Equal(t, 2, l.Prune())
	assert.Equal(t, 0, l.Len())
}
