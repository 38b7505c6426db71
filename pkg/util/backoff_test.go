package util

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffWithJitterBounds(t *testing.T) {
	min, max := 100*time.Millisecond, time.Second
	for attempt := 1; attempt <= 40; attempt++ {
		d := BackoffWithJitter(min, max, attempt)
		assert.LessOrEqual(t, d, max, "attempt %d", attempt)
		assert.Greater(t, d, time.Duration(0), "attempt %d", attempt)
	}
	// first attempt stays within [min/2, min]
	for i := 0; i < 50; i++ {
		d := BackoffWithJitter(min, max, 1)
		assert.GreaterOrEqual(t, d, min/2)
		assert.LessOrEqual(t, d, min)
	}
}

func TestBackoffWithJitterDefaults(t *testing.T) {
	d := BackoffWithJitter(0, 0, 0)
	assert.LessOrEqual(t, d, 50*time.Millisecond)
	assert.Greater(t, d, time.Duration(0))
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	err := Sleep(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)

	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
}
