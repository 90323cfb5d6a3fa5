package streaming

import (
	"encoding/binary"
	"os"
	"sort"
)

// timeIndexEntrySize is the encoded size of one time index entry:
// relative_offset(u32) + timestamp(u64).
const timeIndexEntrySize = 4 + 8

type timeIndexEntry struct {
	relativeOffset uint32
	timestamp      uint64
}

// timeIndex is the sparse `.timeindex` file of a segment, emitted at the
// same cadence as the offset index, used to map a timestamp to the first
// message with ts >= target.
type timeIndex struct {
	file    *os.File
	entries []timeIndexEntry
}

func openTimeIndex(path string) (*timeIndex, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, wrapOpen("timeindex", path, err)
	}
	idx := &timeIndex{file: f}
	if err := idx.load(); err != nil {
		f.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *timeIndex) load() error {
	info, err := idx.file.Stat()
	if err != nil {
		return wrapRead("timeindex", idx.file.Name(), err)
	}
	n := int(info.Size()) / timeIndexEntrySize
	buf := make([]byte, n*timeIndexEntrySize)
	if n > 0 {
		if _, err := idx.file.ReadAt(buf, 0); err != nil {
			return wrapRead("timeindex", idx.file.Name(), err)
		}
	}
	idx.entries = make([]timeIndexEntry, 0, n)
	for i := 0; i < n; i++ {
		b := buf[i*timeIndexEntrySize : (i+1)*timeIndexEntrySize]
		idx.entries = append(idx.entries, timeIndexEntry{
			relativeOffset: binary.LittleEndian.Uint32(b[0:4]),
			timestamp:      binary.LittleEndian.Uint64(b[4:12]),
		})
	}
	return nil
}

func (idx *timeIndex) append(relativeOffset uint32, timestamp uint64) error {
	buf := make([]byte, timeIndexEntrySize)
	binary.LittleEndian.PutUint32(buf[0:4], relativeOffset)
	binary.LittleEndian.PutUint64(buf[4:12], timestamp)
	if _, err := idx.file.Write(buf); err != nil {
		return wrapSave("timeindex", idx.file.Name(), err)
	}
	idx.entries = append(idx.entries, timeIndexEntry{relativeOffset: relativeOffset, timestamp: timestamp})
	return nil
}

// lookup returns the relative offset to start a sequential scan from for
// the first message with timestamp >= target: the relativeOffset of the
// largest entry with timestamp <= target, or zero if none qualifies.
func (idx *timeIndex) lookup(target uint64) uint32 {
	i := sort.Search(len(idx.entries), func(i int) bool {
		return idx.entries[i].timestamp > target
	})
	if i == 0 {
		return 0
	}
	return idx.entries[i-1].relativeOffset
}

func (idx *timeIndex) size() int64 {
	return int64(len(idx.entries) * timeIndexEntrySize)
}

func (idx *timeIndex) truncateTo(n int) error {
	idx.entries = idx.entries[:n]
	if err := idx.file.Truncate(int64(n * timeIndexEntrySize)); err != nil {
		return wrapUpdate("timeindex", idx.file.Name(), err)
	}
	return nil
}

func (idx *timeIndex) sync() error {
	return idx.file.Sync()
}

func (idx *timeIndex) close() error {
	return idx.file.Close()
}

func (idx *timeIndex) Name() string { return idx.file.Name() }
