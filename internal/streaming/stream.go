package streaming

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// Stream is a namespace owning topics, identified by a 1-based id and a
// name unique within the engine.
type Stream struct {
	ID   uint32
	Name string

	dir    string
	logger *zap.Logger

	mu     sync.RWMutex
	topics map[uint32]*Topic
}

func streamInfoPath(dir string) string { return filepath.Join(dir, "info") }

func createStream(dir string, id uint32, name string, logger *zap.Logger) (*Stream, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if name == "" || len(name) > maxNameLength {
		return nil, ErrInvalidStreamName
	}
	if err := os.MkdirAll(filepath.Join(dir, "topics"), 0755); err != nil {
		return nil, wrapCreate("stream", dir, err)
	}
	s := &Stream{ID: id, Name: name, dir: dir, logger: logger, topics: make(map[uint32]*Topic)}
	if err := s.writeInfo(); err != nil {
		return nil, err
	}
	logger.Debug("stream created", zap.Uint32("stream_id", id), zap.String("name", name))
	return s, nil
}

func loadStream(dir string, id uint32, cfg segmentConfig, logger *zap.Logger) (*Stream, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	name, err := readStreamInfo(streamInfoPath(dir))
	if err != nil {
		return nil, err
	}
	s := &Stream{ID: id, Name: name, dir: dir, logger: logger, topics: make(map[uint32]*Topic)}

	topicsDir := filepath.Join(dir, "topics")
	entries, err := os.ReadDir(topicsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, wrapRead("stream topics", topicsDir, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		tid, terr := parseUint32(e.Name())
		if terr != nil {
			continue
		}
		t, err := loadTopic(filepath.Join(topicsDir, e.Name()), id, tid, cfg, logger)
		if err != nil {
			return nil, err
		}
		s.topics[tid] = t
	}
	logger.Debug("stream loaded", zap.Uint32("stream_id", id), zap.Int("topics", len(s.topics)))
	return s, nil
}

func (s *Stream) writeInfo() error {
	nameBytes := []byte(s.Name)
	buf := make([]byte, 4+4+len(nameBytes))
	binary.LittleEndian.PutUint32(buf[0:4], s.ID)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(nameBytes)))
	copy(buf[8:], nameBytes)
	if err := writeFileAtomic(streamInfoPath(s.dir), buf); err != nil {
		return wrapSave("stream info", s.dir, err)
	}
	return nil
}

func readStreamInfo(path string) (string, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return "", wrapRead("stream info", path, err)
	}
	if len(buf) < 8 {
		return "", ErrInvalidFormat
	}
	nameLen := binary.LittleEndian.Uint32(buf[4:8])
	if len(buf) < int(8+nameLen) {
		return "", ErrInvalidFormat
	}
	return string(buf[8 : 8+nameLen]), nil
}

func (s *Stream) CreateTopic(id uint32, name string, partitionsCount uint32, cfg segmentConfig) (*Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.topics[id]; exists {
		return nil, &TopicAlreadyExistsError{StreamID: s.ID, TopicID: id}
	}
	for _, t := range s.topics {
		if t.Name == name {
			return nil, &TopicAlreadyExistsError{StreamID: s.ID, TopicID: id}
		}
	}
	t, err := createTopic(filepath.Join(s.dir, "topics", itoa(id)), s.ID, id, name, partitionsCount, cfg, s.logger)
	if err != nil {
		return nil, err
	}
	s.topics[id] = t
	return t, nil
}

func (s *Stream) DeleteTopic(id uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.topics[id]
	if !ok {
		return &TopicNotFoundError{StreamID: s.ID, TopicID: id}
	}
	delete(s.topics, id)
	return t.Remove()
}

func (s *Stream) GetTopic(id uint32) (*Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.topics[id]
	if !ok {
		return nil, &TopicNotFoundError{StreamID: s.ID, TopicID: id}
	}
	return t, nil
}

func (s *Stream) Topics() []*Topic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Topic, 0, len(s.topics))
	for _, t := range s.topics {
		out = append(out, t)
	}
	return out
}

func (s *Stream) Close() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var firstErr error
	for _, t := range s.topics {
		if err := t.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Stream) Remove() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.topics {
		t.Close()
	}
	if err := os.RemoveAll(s.dir); err != nil {
		return wrapDelete("stream", s.dir, err)
	}
	return nil
}
