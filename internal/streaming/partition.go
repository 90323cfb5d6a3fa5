package streaming

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ConsumerKind distinguishes a bare consumer from a consumer-group member
// for offset-store keying and consumer routing.
type ConsumerKind uint8

const (
	ConsumerKindConsumer ConsumerKind = iota
	ConsumerKindGroup
)

// PollKind selects where within a partition a poll begins reading.
type PollKind uint8

const (
	PollFirst PollKind = iota
	PollLast
	PollNext
	PollOffset
	PollTimestamp
)

// PollRequest bundles everything Partition.Poll needs to resolve a read.
type PollRequest struct {
	Kind         PollKind
	Value        uint64
	Count        uint32
	ConsumerKind ConsumerKind
	ConsumerID   uint32
	AutoCommit   bool
}

// Partition owns an ordered sequence of segments covering a gap-free range
// of offsets starting at zero, exactly one of which (the last) is writable.
type Partition struct {
	dir    string
	id     uint32
	cfg    segmentConfig
	logger *zap.Logger

	mu            sync.RWMutex
	segments      []*segment
	currentOffset uint64
	messagesCount uint64

	offsets *OffsetStore
	onRoll  func()
}

// OnRoll registers a callback invoked every time the partition closes its
// tail segment and opens a new one, letting callers outside the streaming
// package (the admin metrics surface) observe rolls without Partition
// depending on a metrics type.
func (p *Partition) OnRoll(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onRoll = fn
}

// createPartition builds a fresh partition directory with a single empty
// segment starting at offset zero.
func createPartition(dir string, id uint32, cfg segmentConfig, logger *zap.Logger) (*Partition, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, wrapCreate("partition", dir, err)
	}
	seg, err := createSegment(dir, 0, cfg)
	if err != nil {
		return nil, err
	}
	offsets, err := openOffsetStore(filepath.Join(dir, "offsets"))
	if err != nil {
		return nil, err
	}
	logger.Debug("partition created", zap.Uint32("partition_id", id), zap.String("dir", dir))
	return &Partition{
		dir:      dir,
		id:       id,
		cfg:      cfg,
		logger:   logger,
		segments: []*segment{seg},
		offsets:  offsets,
	}, nil
}

// loadPartition opens an existing partition directory, recovering each
// segment in turn. If the highest-start segment was already closed, a new
// empty tail is created so the partition remains writable.
func loadPartition(dir string, id uint32, cfg segmentConfig, logger *zap.Logger) (*Partition, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, wrapRead("partition", dir, err)
	}
	var startOffsets []uint64
	seen := map[uint64]bool{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		base := strings.TrimSuffix(e.Name(), ".log")
		off, err := strconv.ParseUint(base, 10, 64)
		if err != nil {
			continue
		}
		if !seen[off] {
			seen[off] = true
			startOffsets = append(startOffsets, off)
		}
	}
	sort.Slice(startOffsets, func(i, j int) bool { return startOffsets[i] < startOffsets[j] })

	if len(startOffsets) == 0 {
		return createPartition(dir, id, cfg, logger)
	}

	segments := make([]*segment, 0, len(startOffsets))
	for _, off := range startOffsets {
		seg, err := openOrCreateSegment(dir, off, cfg)
		if err != nil {
			for _, s := range segments {
				s.Close()
			}
			return nil, err
		}
		segments = append(segments, seg)
	}

	tail := segments[len(segments)-1]
	var currentOffset, messagesCount uint64
	for _, s := range segments {
		messagesCount += s.count
	}
	currentOffset = tail.nextOffset()

	if tail.IsClosed() {
		newTail, err := createSegment(dir, currentOffset, cfg)
		if err != nil {
			for _, s := range segments {
				s.Close()
			}
			return nil, err
		}
		segments = append(segments, newTail)
	}

	offsets, err := openOffsetStore(filepath.Join(dir, "offsets"))
	if err != nil {
		for _, s := range segments {
			s.Close()
		}
		return nil, err
	}

	logger.Debug("partition loaded",
		zap.Uint32("partition_id", id),
		zap.Int("segments", len(segments)),
		zap.Uint64("current_offset", currentOffset))

	return &Partition{
		dir:           dir,
		id:            id,
		cfg:           cfg,
		logger:        logger,
		segments:      segments,
		currentOffset: currentOffset,
		messagesCount: messagesCount,
		offsets:       offsets,
	}, nil
}

func nowMillis() uint64 {
	return uint64(time.Now().UnixMilli())
}

// Append assigns monotonically increasing offsets and a server timestamp to
// each message, then writes them to the tail segment, rolling to a new
// segment whenever the tail fills mid-batch. It returns the offset assigned
// to the first message of the batch.
func (p *Partition) Append(messages []*Message) (uint64, error) {
	if len(messages) == 0 {
		return 0, nil
	}
	if len(messages) > MaxBatchSize {
		return 0, ErrTooManyMessages
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	firstOffset := p.currentOffset
	ts := nowMillis()
	for i, m := range messages {
		m.Offset = p.currentOffset + uint64(i)
		m.Timestamp = ts
	}

	remaining := messages
	for len(remaining) > 0 {
		tail := p.segments[len(p.segments)-1]
		written, err := tail.Append(remaining)
		p.currentOffset += uint64(written)
		p.messagesCount += uint64(written)
		remaining = remaining[written:]

		if err == ErrSegmentClosed {
			newTail, cerr := createSegment(p.dir, p.currentOffset, p.cfg)
			if cerr != nil {
				return firstOffset, cerr
			}
			p.logger.Debug("segment rolled",
				zap.Uint32("partition_id", p.id),
				zap.Uint64("new_start_offset", p.currentOffset))
			p.segments = append(p.segments, newTail)
			if p.onRoll != nil {
				p.onRoll()
			}
			continue
		}
		if err != nil {
			return firstOffset, err
		}
	}
	return firstOffset, nil
}

// segmentIndexForOffset returns the index of the segment whose range
// contains offset, or len(segments) if offset >= currentOffset.
func (p *Partition) segmentIndexForOffset(offset uint64) int {
	if offset >= p.currentOffset {
		return len(p.segments)
	}
	i := sort.Search(len(p.segments), func(i int) bool {
		return p.segments[i].startOffset > offset
	})
	return i - 1
}

// Poll resolves a PollRequest into a slice of messages, consulting the
// offset store for Next polls and recording auto-commit progress.
func (p *Partition) Poll(req PollRequest) ([]*Message, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	p.logger.Debug("poll",
		zap.Uint32("partition_id", p.id),
		zap.Uint8("kind", uint8(req.Kind)),
		zap.Uint64("value", req.Value),
		zap.Uint32("count", req.Count))

	var startOffset uint64
	switch req.Kind {
	case PollFirst:
		startOffset = 0
	case PollLast:
		n := uint64(req.Count)
		if n > p.messagesCount {
			n = p.messagesCount
		}
		startOffset = p.currentOffset - n
	case PollOffset:
		if req.Value >= p.currentOffset {
			return nil, nil
		}
		startOffset = req.Value
	case PollNext:
		stored, ok := p.offsets.Get(req.ConsumerKind, req.ConsumerID, p.id)
		if ok {
			startOffset = stored + 1
		} else {
			startOffset = 0
		}
		if startOffset >= p.currentOffset {
			return nil, nil
		}
	case PollTimestamp:
		return p.pollByTimestamp(req)
	default:
		return nil, ErrInvalidCommand
	}

	idx := p.segmentIndexForOffset(startOffset)
	if idx < 0 || idx >= len(p.segments) {
		return nil, nil
	}

	result, err := p.collect(idx, startOffset, req.Count)
	if err != nil {
		return result, err
	}
	p.maybeAutoCommit(req, result)
	return result, nil
}

func (p *Partition) pollByTimestamp(req PollRequest) ([]*Message, error) {
	var result []*Message
	remaining := req.Count
	for _, seg := range p.segments {
		if remaining == 0 {
			break
		}
		msgs, err := seg.ReadByTimestamp(req.Value, remaining)
		if err != nil {
			return result, err
		}
		result = append(result, msgs...)
		remaining -= uint32(len(msgs))
	}
	p.maybeAutoCommit(req, result)
	return result, nil
}

func (p *Partition) collect(startIdx int, startOffset uint64, count uint32) ([]*Message, error) {
	var result []*Message
	remaining := count
	for i := startIdx; i < len(p.segments) && remaining > 0; i++ {
		seg := p.segments[i]
		target := seg.startOffset
		if i == startIdx {
			target = startOffset
		}
		msgs, err := seg.ReadByOffset(target, remaining)
		if err != nil {
			return result, err
		}
		result = append(result, msgs...)
		remaining -= uint32(len(msgs))
	}
	return result, nil
}

func (p *Partition) maybeAutoCommit(req PollRequest, result []*Message) {
	if !req.AutoCommit || len(result) == 0 {
		return
	}
	last := result[len(result)-1]
	_ = p.offsets.Store(req.ConsumerKind, req.ConsumerID, p.id, last.Offset)
}

// CurrentOffset returns the next offset that will be assigned.
func (p *Partition) CurrentOffset() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.currentOffset
}

// MessagesCount returns the total number of messages ever appended.
func (p *Partition) MessagesCount() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.messagesCount
}

// SegmentCount returns the number of segment files currently tracked,
// mostly useful for tests asserting roll behavior.
func (p *Partition) SegmentCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.segments)
}

func (p *Partition) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for _, s := range p.segments {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Remove deletes the partition directory recursively.
func (p *Partition) Remove() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.segments {
		s.Close()
	}
	if err := os.RemoveAll(p.dir); err != nil {
		return wrapDelete("partition", p.dir, err)
	}
	return nil
}
