package streaming

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/FairForge/tidelog/internal/registry"
	"go.uber.org/zap"
)

// Config carries the tunables System needs to initialize segments created
// under it, plus the default partition count new topics get when the
// caller doesn't specify one.
type Config struct {
	MaxSegmentSize         int64
	IndexIntervalBytes     int64
	MessagesRequiredToSave int
	DefaultPartitionsCount uint32
}

func (c Config) segmentConfig() segmentConfig {
	return segmentConfig{
		maxSegmentSize:         c.MaxSegmentSize,
		indexIntervalBytes:     c.IndexIntervalBytes,
		messagesRequiredToSave: c.MessagesRequiredToSave,
	}
}

// System is the engine: it owns every stream rooted at baseDir and the
// client registry, mirroring the teacher's engine.CoreEngine
// constructor-injection shape (NewEngine(db, logger, config)) generalized
// from a storage-backend router to a stream/topic/partition owner. Its
// readers-writer lock guards only the stream table; operations below a
// stream take the locks of the stream, topic, partition or group they
// touch, so mutating operations on different entities are not serialized
// against each other.
type System struct {
	baseDir string
	logger  *zap.Logger
	cfg     Config

	registry *registry.Registry
	lock     *fileLock

	mu         sync.RWMutex
	streams    map[uint32]*Stream
	rollMetric func(streamName, topicName string)
}

// OnSegmentRoll registers fn to be called with the owning (stream name,
// topic name) every time any partition of any topic rolls to a new
// segment, applied to every topic already loaded and every topic created
// afterward. Used to wire the admin metrics surface's segment-roll counter
// without streaming depending on a metrics type.
func (s *System) OnSegmentRoll(fn func(streamName, topicName string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollMetric = fn
	for _, st := range s.streams {
		for _, tp := range st.Topics() {
			tp.OnPartitionRoll(func() { fn(st.Name, tp.Name) })
		}
	}
}

// NewSystem creates the base directory if absent and loads every stream,
// topic, partition and segment already on disk under it.
func NewSystem(baseDir string, logger *zap.Logger, cfg Config) (*System, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Join(baseDir, "streams"), 0755); err != nil {
		return nil, wrapCreate("system", baseDir, err)
	}

	lock, err := acquireBaseDirLock(baseDir)
	if err != nil {
		return nil, err
	}

	s := &System{
		baseDir:  baseDir,
		logger:   logger,
		cfg:      cfg,
		registry: registry.New(logger),
		lock:     lock,
		streams:  make(map[uint32]*Stream),
	}
	if err := s.load(); err != nil {
		lock.release()
		return nil, err
	}
	s.logger.Info("system initialized", zap.String("base_dir", baseDir), zap.Int("streams", len(s.streams)))
	return s, nil
}

func (s *System) load() error {
	streamsDir := filepath.Join(s.baseDir, "streams")
	entries, err := os.ReadDir(streamsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return wrapRead("system streams", streamsDir, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, perr := parseUint32(e.Name())
		if perr != nil {
			continue
		}
		st, err := loadStream(filepath.Join(streamsDir, e.Name()), id, s.cfg.segmentConfig(), s.logger)
		if err != nil {
			return err
		}
		s.streams[id] = st
	}
	return nil
}

// CreateStream registers a new stream with the given id and name.
func (s *System) CreateStream(id uint32, name string) (*Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.streams[id]; exists {
		return nil, &StreamAlreadyExistsError{StreamID: id}
	}
	for _, st := range s.streams {
		if st.Name == name {
			return nil, &StreamAlreadyExistsError{StreamID: id}
		}
	}

	dir := filepath.Join(s.baseDir, "streams", itoa(id))
	st, err := createStream(dir, id, name, s.logger)
	if err != nil {
		return nil, err
	}
	s.streams[id] = st
	return st, nil
}

// DeleteStream removes the in-memory stream and its on-disk directory
// recursively.
func (s *System) DeleteStream(id uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.streams[id]
	if !ok {
		return &StreamNotFoundError{StreamID: id}
	}
	delete(s.streams, id)
	return st.Remove()
}

// GetStream returns the stream with the given id.
func (s *System) GetStream(id uint32) (*Stream, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.streams[id]
	if !ok {
		return nil, &StreamNotFoundError{StreamID: id}
	}
	return st, nil
}

// GetStreams returns every stream, sorted by id.
func (s *System) GetStreams() []*Stream {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Stream, 0, len(s.streams))
	for _, st := range s.streams {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CreateTopic creates a topic under streamID. A zero partitionsCount falls
// back to the system's configured default.
func (s *System) CreateTopic(streamID, topicID uint32, name string, partitionsCount uint32) (*Topic, error) {
	st, err := s.GetStream(streamID)
	if err != nil {
		return nil, err
	}
	if partitionsCount == 0 {
		partitionsCount = s.cfg.DefaultPartitionsCount
	}
	tp, err := st.CreateTopic(topicID, name, partitionsCount, s.cfg.segmentConfig())
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	fn := s.rollMetric
	s.mu.RUnlock()
	if fn != nil {
		tp.OnPartitionRoll(func() { fn(st.Name, tp.Name) })
	}
	return tp, nil
}

// DeleteTopic removes topicID from streamID.
func (s *System) DeleteTopic(streamID, topicID uint32) error {
	st, err := s.GetStream(streamID)
	if err != nil {
		return err
	}
	return st.DeleteTopic(topicID)
}

// GetTopic returns topicID under streamID.
func (s *System) GetTopic(streamID, topicID uint32) (*Topic, error) {
	st, err := s.GetStream(streamID)
	if err != nil {
		return nil, err
	}
	return st.GetTopic(topicID)
}

// GetTopics returns every topic under streamID, sorted by id.
func (s *System) GetTopics(streamID uint32) ([]*Topic, error) {
	st, err := s.GetStream(streamID)
	if err != nil {
		return nil, err
	}
	topics := st.Topics()
	sort.Slice(topics, func(i, j int) bool { return topics[i].ID < topics[j].ID })
	return topics, nil
}

// Send validates and routes a batch of messages to the appropriate
// partition of (streamID, topicID).
func (s *System) Send(streamID, topicID uint32, keyKind KeyKind, keyValue uint32, messages []*Message) (partitionID uint32, firstOffset uint64, err error) {
	if len(messages) > MaxBatchSize {
		return 0, 0, ErrTooManyMessages
	}
	for _, m := range messages {
		if err := ValidatePayload(m.Payload); err != nil {
			return 0, 0, err
		}
	}
	t, err := s.GetTopic(streamID, topicID)
	if err != nil {
		return 0, 0, err
	}
	return t.Send(keyKind, keyValue, messages)
}

// Poll resolves the partition a (consumerKind, clientID, groupID,
// partitionID) poll request targets and reads from it. A nil result with a
// nil error means either that the polling group member has an empty share
// (more members than partitions) or that the partition holds nothing at
// the requested position. A group poll with partitionID 0 by a client that
// is not a member of the group returns ConsumerGroupMemberNotFoundError.
func (s *System) Poll(streamID, topicID uint32, consumerKind ConsumerKind, clientID, groupID, partitionID uint32, req PollRequest) ([]*Message, error) {
	t, err := s.GetTopic(streamID, topicID)
	if err != nil {
		return nil, err
	}
	pid, err := t.ResolvePollPartition(consumerKind, clientID, groupID, partitionID)
	if err != nil {
		return nil, err
	}
	if pid == 0 {
		return nil, nil
	}
	p, err := t.Partition(pid)
	if err != nil {
		return nil, err
	}

	req.ConsumerKind = consumerKind
	if consumerKind == ConsumerKindGroup {
		req.ConsumerID = groupID
	} else {
		req.ConsumerID = clientID
	}
	return p.Poll(req)
}

// CreateGroup creates a consumer group under (streamID, topicID).
func (s *System) CreateGroup(streamID, topicID, groupID uint32) (*ConsumerGroup, error) {
	t, err := s.GetTopic(streamID, topicID)
	if err != nil {
		return nil, err
	}
	return t.CreateGroup(groupID)
}

// DeleteGroup removes a consumer group.
func (s *System) DeleteGroup(streamID, topicID, groupID uint32) error {
	t, err := s.GetTopic(streamID, topicID)
	if err != nil {
		return err
	}
	return t.DeleteGroup(groupID)
}

// GetGroup returns a consumer group.
func (s *System) GetGroup(streamID, topicID, groupID uint32) (*ConsumerGroup, error) {
	t, err := s.GetTopic(streamID, topicID)
	if err != nil {
		return nil, err
	}
	return t.GetGroup(groupID)
}

// JoinGroup adds clientID to the group and records the membership against
// the client's registry entry so it can be cleaned up on disconnect.
func (s *System) JoinGroup(streamID, topicID, groupID, clientID uint32) error {
	g, err := s.GetGroup(streamID, topicID, groupID)
	if err != nil {
		return err
	}
	g.Join(clientID)
	return s.registry.Join(clientID, streamID, topicID, groupID)
}

// LeaveGroup removes clientID from the group and from the client's
// tracked memberships.
func (s *System) LeaveGroup(streamID, topicID, groupID, clientID uint32) error {
	g, err := s.GetGroup(streamID, topicID, groupID)
	if err != nil {
		return err
	}
	if err := g.Leave(clientID); err != nil {
		return err
	}
	return s.registry.Leave(clientID, streamID, topicID, groupID)
}

// StoreOffset persists (kind, consumerID)'s offset for a given partition.
func (s *System) StoreOffset(streamID, topicID, partitionID uint32, kind ConsumerKind, consumerID uint32, offset uint64) error {
	t, err := s.GetTopic(streamID, topicID)
	if err != nil {
		return err
	}
	p, err := t.Partition(partitionID)
	if err != nil {
		return err
	}
	return p.offsets.Store(kind, consumerID, partitionID, offset)
}

// GetOffset returns the last stored offset for (kind, consumerID) on a
// partition, if any.
func (s *System) GetOffset(streamID, topicID, partitionID uint32, kind ConsumerKind, consumerID uint32) (uint64, bool, error) {
	t, err := s.GetTopic(streamID, topicID)
	if err != nil {
		return 0, false, err
	}
	p, err := t.Partition(partitionID)
	if err != nil {
		return 0, false, err
	}
	v, ok := p.offsets.Get(kind, consumerID, partitionID)
	return v, ok, nil
}

// Connect registers a newly accepted client connection and returns its
// registry entry, whose ID is the assigned client id; the engine's half of
// the wire protocol's implicit connect step.
func (s *System) Connect(address string) *registry.Client {
	return s.registry.Connect(address)
}

// Disconnect removes clientID's registry entry, propagating a Leave to
// every consumer group it had joined across every stream and topic.
func (s *System) Disconnect(clientID uint32) error {
	return s.registry.Disconnect(clientID, func(m registry.Membership, cid uint32) {
		if g, err := s.GetGroup(m.StreamID, m.TopicID, m.GroupID); err == nil {
			_ = g.Leave(cid)
		}
	})
}

// GetMe returns the registry entry for clientID, translating a registry
// miss into the engine's typed ClientNotFoundError.
func (s *System) GetMe(clientID uint32) (*registry.Client, error) {
	c, err := s.registry.Get(clientID)
	if err != nil {
		return nil, &ClientNotFoundError{ClientID: clientID}
	}
	return c, nil
}

// GetClient is an alias of GetMe used when a caller asks about a specific
// client id rather than its own connection.
func (s *System) GetClient(clientID uint32) (*registry.Client, error) {
	return s.GetMe(clientID)
}

// GetClients enumerates every connected client.
func (s *System) GetClients() []*registry.Client {
	return s.registry.List()
}

// Ping is a no-op liveness check; it exists on System so the wire codec has
// a single operation surface for every command, including ones that never
// touch engine state.
func (s *System) Ping() {}

// Kill disconnects clientID, used by the wire codec's KILL command to force
// a connection closed server-side.
func (s *System) Kill(clientID uint32) error {
	return s.Disconnect(clientID)
}

// Close flushes and closes every stream's underlying files without
// removing any on-disk data.
func (s *System) Close() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var firstErr error
	for _, st := range s.streams {
		if err := st.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := s.lock.release(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
