package streaming

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// segmentConfig carries the tunables a segment needs, set once by the
// owning partition/topic configuration.
type segmentConfig struct {
	maxSegmentSize         int64
	indexIntervalBytes     int64
	messagesRequiredToSave int
}

// segmentFileName formats the zero-padded 20-digit base name shared by a
// segment's three files, matching the on-disk layout's
// <start_offset:020d>.{log,index,timeindex} convention.
func segmentFileName(startOffset uint64) string {
	return fmt.Sprintf("%020d", startOffset)
}

// segment is one append-only log file plus its two sparse index files,
// covering a contiguous, half-open offset range [startOffset, startOffset+count).
type segment struct {
	dir         string
	startOffset uint64
	config      segmentConfig

	log       *os.File
	index     *offsetIndex
	timeIndex *timeIndex

	sizeBytes       int64
	count           uint64
	bytesSinceIndex int64
	unsaved         int
	closed          bool
}

// createSegment makes a brand new, empty segment at startOffset.
func createSegment(dir string, startOffset uint64, cfg segmentConfig) (*segment, error) {
	return openOrCreateSegment(dir, startOffset, cfg)
}

func openOrCreateSegment(dir string, startOffset uint64, cfg segmentConfig) (*segment, error) {
	base := segmentFileName(startOffset)
	logPath := filepath.Join(dir, base+".log")
	indexPath := filepath.Join(dir, base+".index")
	timeIndexPath := filepath.Join(dir, base+".timeindex")

	logFile, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, wrapOpen("segment log", logPath, err)
	}
	idx, err := openOffsetIndex(indexPath)
	if err != nil {
		logFile.Close()
		return nil, err
	}
	tidx, err := openTimeIndex(timeIndexPath)
	if err != nil {
		logFile.Close()
		idx.close()
		return nil, err
	}

	s := &segment{
		dir:         dir,
		startOffset: startOffset,
		config:      cfg,
		log:         logFile,
		index:       idx,
		timeIndex:   tidx,
	}
	if err := s.recover(); err != nil {
		s.Close()
		return nil, err
	}
	if s.sizeBytes >= cfg.maxSegmentSize {
		s.closed = true
	}
	return s, nil
}

// recover sequentially scans the log, validating each message's checksum.
// On the first invalid or partial message it truncates the log at that
// message's start and rewrites the indices to stop referencing anything
// beyond the truncated boundary.
func (s *segment) recover() error {
	if _, err := s.log.Seek(0, io.SeekStart); err != nil {
		return wrapRead("segment log", s.log.Name(), err)
	}
	var pos int64
	var count uint64
	for {
		m, err := DecodeMessage(s.log)
		if err == io.EOF {
			break
		}
		if err != nil {
			// Checksum mismatch or truncated record: recover by
			// discarding everything from this message onward.
			if err := s.log.Truncate(pos); err != nil {
				return wrapUpdate("segment log", s.log.Name(), err)
			}
			break
		}
		pos += int64(m.SizeBytes())
		count++
	}
	s.sizeBytes = pos
	s.count = count

	// Drop any index entries that point past the validated region.
	validIdx := 0
	for _, e := range s.index.entries {
		if int64(e.filePosition) >= pos {
			break
		}
		validIdx++
	}
	if validIdx < len(s.index.entries) {
		if err := s.index.truncateTo(validIdx); err != nil {
			return err
		}
	}
	validTidx := 0
	for _, e := range s.timeIndex.entries {
		if uint64(e.relativeOffset) >= count {
			break
		}
		validTidx++
	}
	if validTidx < len(s.timeIndex.entries) {
		if err := s.timeIndex.truncateTo(validTidx); err != nil {
			return err
		}
	}

	if _, err := s.log.Seek(0, io.SeekEnd); err != nil {
		return wrapRead("segment log", s.log.Name(), err)
	}
	return nil
}

// nextOffset is the offset the next appended message in this segment will
// receive.
func (s *segment) nextOffset() uint64 {
	return s.startOffset + s.count
}

// Append writes as many of messages as fit under maxSegmentSize, in order.
// It returns how many were written. If the segment fills before the whole
// batch is written, it closes the segment and returns ErrSegmentClosed
// alongside the partial count; the caller (partition) must roll to a new
// segment and retry the remainder.
func (s *segment) Append(messages []*Message) (int, error) {
	if s.closed {
		return 0, ErrSegmentClosed
	}
	for i, m := range messages {
		if err := ValidatePayload(m.Payload); err != nil {
			return i, err
		}
		encoded := m.Encode(nil)
		if s.sizeBytes+int64(len(encoded)) > s.config.maxSegmentSize {
			if err := s.flush(); err != nil {
				return i, err
			}
			s.closed = true
			return i, ErrSegmentClosed
		}

		pos := s.sizeBytes
		if _, err := s.log.Write(encoded); err != nil {
			return i, wrapSave("segment log", s.log.Name(), err)
		}
		s.sizeBytes += int64(len(encoded))
		s.bytesSinceIndex += int64(len(encoded))
		s.count++
		s.unsaved++

		if s.bytesSinceIndex >= s.config.indexIntervalBytes {
			relative := uint32(m.Offset - s.startOffset)
			if err := s.index.append(relative, uint32(pos)); err != nil {
				return i + 1, err
			}
			if err := s.timeIndex.append(relative, m.Timestamp); err != nil {
				return i + 1, err
			}
			s.bytesSinceIndex = 0
		}

		if s.unsaved >= s.config.messagesRequiredToSave {
			if err := s.flush(); err != nil {
				return i + 1, err
			}
		}
	}
	if s.sizeBytes >= s.config.maxSegmentSize {
		if err := s.flush(); err != nil {
			return len(messages), err
		}
		s.closed = true
	}
	return len(messages), nil
}

// flush forces buffered writes to disk. Idempotent.
func (s *segment) flush() error {
	if err := s.log.Sync(); err != nil {
		return wrapSave("segment log", s.log.Name(), err)
	}
	if err := s.index.sync(); err != nil {
		return err
	}
	if err := s.timeIndex.sync(); err != nil {
		return err
	}
	s.unsaved = 0
	return nil
}

// Flush is the exported, explicit form of flush.
func (s *segment) Flush() error { return s.flush() }

// IsClosed reports whether the segment has reached its size limit and will
// reject further appends.
func (s *segment) IsClosed() bool { return s.closed }

// ReadByOffset returns up to count messages starting at the first message
// with Offset >= target, using the sparse offset index to bound the scan.
// ReadByOffset assumes target >= s.startOffset; callers reading a segment in
// full (because an earlier segment already satisfied the start of the
// range) pass s.startOffset itself.
func (s *segment) ReadByOffset(target uint64, count uint32) ([]*Message, error) {
	relative := uint32(target - s.startOffset)
	pos := s.index.lookup(relative)
	return s.scan(int64(pos), count, func(m *Message) bool { return m.Offset >= target })
}

// ReadByTimestamp returns up to count messages starting at the first
// message with Timestamp >= target, using the sparse time index to bound
// the scan.
func (s *segment) ReadByTimestamp(target uint64, count uint32) ([]*Message, error) {
	relative := s.timeIndex.lookup(target)
	pos := s.index.lookup(relative)
	return s.scan(int64(pos), count, func(m *Message) bool { return m.Timestamp >= target })
}

func (s *segment) scan(startPos int64, count uint32, keep func(*Message) bool) ([]*Message, error) {
	f, err := os.Open(s.log.Name())
	if err != nil {
		return nil, wrapOpen("segment log", s.log.Name(), err)
	}
	defer f.Close()

	if _, err := f.Seek(startPos, io.SeekStart); err != nil {
		return nil, wrapRead("segment log", s.log.Name(), err)
	}

	result := make([]*Message, 0, count)
	for uint32(len(result)) < count {
		m, err := DecodeMessage(f)
		if err == io.EOF {
			break
		}
		if err != nil {
			return result, err
		}
		if keep(m) {
			result = append(result, m)
		}
	}
	return result, nil
}

func (s *segment) Close() error {
	var firstErr error
	if err := s.log.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.index.close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.timeIndex.close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (s *segment) Remove() error {
	if err := s.Close(); err != nil {
		return err
	}
	for _, name := range []string{s.log.Name(), s.index.Name(), s.timeIndex.Name()} {
		if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
			return wrapDelete("segment", name, err)
		}
	}
	return nil
}
