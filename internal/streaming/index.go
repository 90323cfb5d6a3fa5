package streaming

import (
	"encoding/binary"
	"os"
	"sort"
)

// indexEntrySize is the encoded size of one offset index entry:
// relative_offset(u32) + file_position(u32).
const indexEntrySize = 4 + 4

// offsetIndexEntry maps an offset relative to its segment's start_offset to
// the byte position of that message within the segment's log file.
type offsetIndexEntry struct {
	relativeOffset uint32
	filePosition   uint32
}

// offsetIndex is the sparse `.index` file of a segment: entries are emitted
// every indexIntervalBytes of log bytes written, not per message, so a
// lookup bounds a sequential scan rather than locating the exact record.
type offsetIndex struct {
	file    *os.File
	entries []offsetIndexEntry
}

func openOffsetIndex(path string) (*offsetIndex, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, wrapOpen("index", path, err)
	}
	idx := &offsetIndex{file: f}
	if err := idx.load(); err != nil {
		f.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *offsetIndex) load() error {
	info, err := idx.file.Stat()
	if err != nil {
		return wrapRead("index", idx.file.Name(), err)
	}
	n := int(info.Size()) / indexEntrySize
	buf := make([]byte, n*indexEntrySize)
	if n > 0 {
		if _, err := idx.file.ReadAt(buf, 0); err != nil {
			return wrapRead("index", idx.file.Name(), err)
		}
	}
	idx.entries = make([]offsetIndexEntry, 0, n)
	for i := 0; i < n; i++ {
		b := buf[i*indexEntrySize : (i+1)*indexEntrySize]
		idx.entries = append(idx.entries, offsetIndexEntry{
			relativeOffset: binary.LittleEndian.Uint32(b[0:4]),
			filePosition:   binary.LittleEndian.Uint32(b[4:8]),
		})
	}
	return nil
}

// append writes a new sparse entry. Entries must be appended in increasing
// relativeOffset order; callers (segment.Append) guarantee this since
// offsets only increase.
func (idx *offsetIndex) append(relativeOffset, filePosition uint32) error {
	buf := make([]byte, indexEntrySize)
	binary.LittleEndian.PutUint32(buf[0:4], relativeOffset)
	binary.LittleEndian.PutUint32(buf[4:8], filePosition)
	if _, err := idx.file.Write(buf); err != nil {
		return wrapSave("index", idx.file.Name(), err)
	}
	idx.entries = append(idx.entries, offsetIndexEntry{relativeOffset: relativeOffset, filePosition: filePosition})
	return nil
}

// lookup returns the file position to start a sequential scan from for the
// given relative offset: the largest entry with relativeOffset <= target,
// or zero if no entry qualifies (meaning "scan from the start of the log").
func (idx *offsetIndex) lookup(target uint32) uint32 {
	i := sort.Search(len(idx.entries), func(i int) bool {
		return idx.entries[i].relativeOffset > target
	})
	if i == 0 {
		return 0
	}
	return idx.entries[i-1].filePosition
}

func (idx *offsetIndex) size() int64 {
	return int64(len(idx.entries) * indexEntrySize)
}

func (idx *offsetIndex) truncateTo(n int) error {
	idx.entries = idx.entries[:n]
	if err := idx.file.Truncate(int64(n * indexEntrySize)); err != nil {
		return wrapUpdate("index", idx.file.Name(), err)
	}
	return nil
}

func (idx *offsetIndex) sync() error {
	return idx.file.Sync()
}

func (idx *offsetIndex) close() error {
	return idx.file.Close()
}

func (idx *offsetIndex) Name() string { return idx.file.Name() }
