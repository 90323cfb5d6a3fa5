// Package logging builds the broker's zap logger and batches the admin
// surface's high-volume request entries so they flush as periodic summary
// lines instead of one log line per request.
package logging

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// RequestEntry is one admin HTTP request observation.
type RequestEntry struct {
	Method  string
	Path    string
	Status  int
	Latency time.Duration
}

// RequestLogStats is the counters snapshot exposed read-only by the admin
// surface's /debug/requestlog endpoint.
type RequestLogStats struct {
	Buffered int64 `json:"buffered"`
	Flushed  int64 `json:"flushed"`
	Dropped  int64 `json:"dropped"`
}

// RequestLog buffers request entries up to a fixed capacity and flushes
// them to a zap logger on an interval, one summary line per flush: total
// count, per-path counts, and the worst latency seen in the window.
// Entries arriving while the buffer is full are counted as dropped rather
// than blocking the request path.
type RequestLog struct {
	logger   *zap.Logger
	capacity int
	interval time.Duration

	mu      sync.Mutex
	buf     []RequestEntry
	flushed int64
	dropped int64

	stopCh chan struct{}
}

// NewRequestLog builds a RequestLog flushing to logger. Zero capacity or
// interval fall back to 256 entries / 5s.
func NewRequestLog(logger *zap.Logger, capacity int, interval time.Duration) *RequestLog {
	if logger == nil {
		logger = zap.NewNop()
	}
	if capacity <= 0 {
		capacity = 256
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &RequestLog{
		logger:   logger,
		capacity: capacity,
		interval: interval,
		buf:      make([]RequestEntry, 0, capacity),
		stopCh:   make(chan struct{}),
	}
}

// Record buffers one request entry, dropping it if the buffer is full.
func (r *RequestLog) Record(e RequestEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.buf) >= r.capacity {
		r.dropped++
		return
	}
	r.buf = append(r.buf, e)
}

// Start launches the periodic flush loop.
func (r *RequestLog) Start() {
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.Flush()
			case <-r.stopCh:
				return
			}
		}
	}()
}

// Stop halts the flush loop and flushes whatever is still buffered.
func (r *RequestLog) Stop() {
	close(r.stopCh)
	r.Flush()
}

// Flush emits one summary line for the buffered window and resets the
// buffer. A quiet window emits nothing.
func (r *RequestLog) Flush() {
	r.mu.Lock()
	if len(r.buf) == 0 {
		r.mu.Unlock()
		return
	}
	entries := r.buf
	r.buf = make([]RequestEntry, 0, r.capacity)
	r.flushed += int64(len(entries))
	r.mu.Unlock()

	byPath := make(map[string]int, 8)
	var maxLatency time.Duration
	errors := 0
	for _, e := range entries {
		byPath[e.Path]++
		if e.Latency > maxLatency {
			maxLatency = e.Latency
		}
		if e.Status >= 400 {
			errors++
		}
	}

	r.logger.Debug("admin requests",
		zap.Int("count", len(entries)),
		zap.Int("errors", errors),
		zap.Any("by_path", byPath),
		zap.Duration("max_latency", maxLatency))
}

// Stats returns a snapshot of the counters.
func (r *RequestLog) Stats() RequestLogStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RequestLogStats{
		Buffered: int64(len(r.buf)),
		Flushed:  r.flushed,
		Dropped:  r.dropped,
	}
}
