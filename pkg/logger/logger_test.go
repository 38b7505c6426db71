package logger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu      sync.Mutex
	topics  []string
	batches [][]AggregatedLogEntry
}

func (p *recordingPublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func (p *recordingPublisher) snapshot() ([]string, [][]AggregatedLogEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...), append([][]AggregatedLogEntry(nil), p.batches...)
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud", Output: "stdout"})
	require.Error(t, err)
}

func TestCollectorAggregatesDuplicates(t *testing.T) {
	pub := &recordingPublisher{}
	l, err := New(&Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)

	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 10, Topic: "logs", Publisher: pub})
	for i := 0; i < 3; i++ {
		l.Error("provider failed", String("symbol", "AAA"), Error(errors.New("boom")))
	}
	l.Error("provider failed", String("symbol", "BBB"))
	require.Equal(t, 2, l.sink.get().Pending())

	l.RemoveCollector()

	topics, batches := pub.snapshot()
	require.Len(t, batches, 1)
	assert.Equal(t, []string{"logs"}, topics)

	counts := map[string]int{}
	for _, e := range batches[0] {
		counts[e.Fields["symbol"].(string)] = e.Count
	}
	assert.Equal(t, map[string]int{"AAA": 3, "BBB": 1}, counts)
}

func TestCollectorFlushesAtThreshold(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 2, Topic: "logs", Publisher: pub})
	c.AddLog("error", "a", nil, "x.go:1")
	c.AddLog("error", "b", nil, "x.go:2")
	c.Close()

	_, batches := pub.snapshot()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 2)
	assert.Equal(t, 0, c.Pending())
}

func TestNopLoggerDoesNotPanic(t *testing.T) {
	l := Nop().With(String("component", "test"))
	l.Info("hello", Int("n", 1), Float64("f", 1.5), Duration("d", time.Second), Bool("b", true))
	l.Error("bad", Error(nil))
}

func TestCollectorReachesEarlierChildren(t *testing.T) {
	pub := &recordingPublisher{}
	l, err := New(&Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	child := l.With(String("component", "scanner"))

	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 10, Topic: "logs", Publisher: pub})
	child.Error("scan failed")
	assert.Equal(t, 1, l.sink.get().Pending())

	l.RemoveCollector()
	child.Error("after removal")
	_, batches := pub.snapshot()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 1)
}

func TestDurationFieldIsMilliseconds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	l.Info("warmup finished", Duration("duration_ms", 1500*time.Millisecond))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"duration_ms":1500`)
}
