package logging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedRequestLog(capacity int) (*RequestLog, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return NewRequestLog(zap.New(core), capacity, time.Hour), logs
}

func TestRequestLog_FlushEmitsOneSummaryLine(t *testing.T) {
	rl, logs := newObservedRequestLog(16)

	rl.Record(RequestEntry{Method: "GET", Path: "/health", Status: 200, Latency: time.Millisecond})
	rl.Record(RequestEntry{Method: "GET", Path: "/health", Status: 500, Latency: 3 * time.Millisecond})
	rl.Record(RequestEntry{Method: "GET", Path: "/metrics", Status: 200, Latency: 2 * time.Millisecond})
	rl.Flush()

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "admin requests", entry.Message)

	fields := entry.ContextMap()
	assert.Equal(t, int64(3), fields["count"])
	assert.Equal(t, int64(1), fields["errors"])
	assert.Equal(t, 3*time.Millisecond, fields["max_latency"])
	byPath, ok := fields["by_path"].(map[string]int)
	require.True(t, ok)
	assert.Equal(t, 2, byPath["/health"])
	assert.Equal(t, 1, byPath["/metrics"])
}

func TestRequestLog_QuietWindowEmitsNothing(t *testing.T) {
	rl, logs := newObservedRequestLog(16)
	rl.Flush()
	assert.Zero(t, logs.Len())
}

func TestRequestLog_DropsWhenFull(t *testing.T) {
	rl, _ := newObservedRequestLog(2)

	for i := 0; i < 5; i++ {
		rl.Record(RequestEntry{Method: "GET", Path: "/health"})
	}

	stats := rl.Stats()
	assert.Equal(t, int64(2), stats.Buffered)
	assert.Equal(t, int64(3), stats.Dropped)
}

func TestRequestLog_StatsTrackFlushes(t *testing.T) {
	rl, _ := newObservedRequestLog(16)

	rl.Record(RequestEntry{Method: "GET", Path: "/health"})
	rl.Record(RequestEntry{Method: "GET", Path: "/version"})
	rl.Flush()
	rl.Record(RequestEntry{Method: "GET", Path: "/health"})

	stats := rl.Stats()
	assert.Equal(t, int64(1), stats.Buffered)
	assert.Equal(t, int64(2), stats.Flushed)
	assert.Equal(t, int64(0), stats.Dropped)
}

func TestRequestLog_StopFlushesRemainder(t *testing.T) {
	rl, logs := newObservedRequestLog(16)
	rl.Start()
	rl.Record(RequestEntry{Method: "GET", Path: "/health"})
	rl.Stop()

	assert.Equal(t, 1, logs.Len())
	assert.Equal(t, int64(1), rl.Stats().Flushed)
}
