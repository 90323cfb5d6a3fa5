package streaming

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// OffsetStore persists the last offset a (consumer, partition) pair has
// read, one small file per consumer under the partition's offsets/
// directory, named "<kind>-<consumer_id>" and holding a little-endian u64.
type OffsetStore struct {
	dir  string
	mu   sync.Mutex
	vals map[offsetKey]uint64
}

type offsetKey struct {
	kind ConsumerKind
	id   uint32
}

func offsetFileName(kind ConsumerKind, id uint32) string {
	return strconv.Itoa(int(kind)) + "-" + strconv.FormatUint(uint64(id), 10)
}

func openOffsetStore(dir string) (*OffsetStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, wrapCreate("offsets", dir, err)
	}
	s := &OffsetStore{dir: dir, vals: make(map[offsetKey]uint64)}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *OffsetStore) load() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return wrapRead("offsets", s.dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		parts := strings.SplitN(e.Name(), "-", 2)
		if len(parts) != 2 {
			continue
		}
		kindN, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}
		id, err := strconv.ParseUint(parts[1], 10, 32)
		if err != nil {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		buf, err := os.ReadFile(path)
		if err != nil {
			return wrapRead("offset file", path, err)
		}
		if len(buf) != 8 {
			continue
		}
		s.vals[offsetKey{kind: ConsumerKind(kindN), id: uint32(id)}] = binary.LittleEndian.Uint64(buf)
	}
	return nil
}

// Get returns the last stored offset for (kind, consumerID), if any.
// partitionID is accepted for call-site symmetry with Store; the store
// itself is already scoped to a single partition's directory.
func (s *OffsetStore) Get(kind ConsumerKind, consumerID uint32, partitionID uint32) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vals[offsetKey{kind: kind, id: consumerID}]
	return v, ok
}

// Store durably persists offset for (kind, consumerID) by writing to a
// temp file and renaming over the target, so a crash mid-write never
// leaves a partially-written offset file.
func (s *OffsetStore) Store(kind ConsumerKind, consumerID uint32, partitionID uint32, offset uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := offsetFileName(kind, consumerID)
	target := filepath.Join(s.dir, name)
	tmp := target + "." + uuid.New().String() + ".tmp"

	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, offset)
	if err := os.WriteFile(tmp, buf, 0644); err != nil {
		return wrapSave("offset file", tmp, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return wrapSave("offset file", target, err)
	}
	s.vals[offsetKey{kind: kind, id: consumerID}] = offset
	return nil
}
