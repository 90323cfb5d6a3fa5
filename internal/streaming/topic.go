package streaming

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// KeyKind selects how Topic.Send picks a partition for a batch of messages.
type KeyKind uint8

const (
	KeyKindNone        KeyKind = iota // round-robin
	KeyKindPartitionID                // key_value is the partition id directly
	KeyKindEntityID                   // partition = ((key_value-1) mod P) + 1
)

const maxNameLength = 255

// Topic owns a fixed set of partitions and the consumer groups that read
// from them, and persists its own metadata file.
type Topic struct {
	StreamID        uint32
	ID              uint32
	Name            string
	PartitionsCount uint32

	dir    string
	logger *zap.Logger

	partitions map[uint32]*Partition
	rrCursor   uint32 // atomic, producer round-robin cursor

	mu     sync.RWMutex
	groups map[uint32]*ConsumerGroup
}

func topicInfoPath(dir string) string { return filepath.Join(dir, "info") }

func createTopic(dir string, streamID, id uint32, name string, partitionsCount uint32, cfg segmentConfig, logger *zap.Logger) (*Topic, error) {
	if name == "" || len(name) > maxNameLength {
		return nil, ErrInvalidTopicName
	}
	if partitionsCount == 0 {
		return nil, ErrInvalidTopicPartitions
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, wrapCreate("topic", dir, err)
	}

	t := &Topic{
		StreamID:        streamID,
		ID:              id,
		Name:            name,
		PartitionsCount: partitionsCount,
		dir:             dir,
		logger:          logger,
		partitions:      make(map[uint32]*Partition, partitionsCount),
		groups:          make(map[uint32]*ConsumerGroup),
	}
	if err := t.writeInfo(); err != nil {
		return nil, err
	}

	partsDir := filepath.Join(dir, "partitions")
	for i := uint32(1); i <= partitionsCount; i++ {
		p, err := createPartition(filepath.Join(partsDir, itoa(i)), i, cfg, logger)
		if err != nil {
			return nil, err
		}
		t.partitions[i] = p
	}
	return t, nil
}

func loadTopic(dir string, streamID, id uint32, cfg segmentConfig, logger *zap.Logger) (*Topic, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	name, partitionsCount, err := readTopicInfo(topicInfoPath(dir))
	if err != nil {
		return nil, err
	}
	t := &Topic{
		StreamID:        streamID,
		ID:              id,
		Name:            name,
		PartitionsCount: partitionsCount,
		dir:             dir,
		logger:          logger,
		partitions:      make(map[uint32]*Partition, partitionsCount),
		groups:          make(map[uint32]*ConsumerGroup),
	}

	partsDir := filepath.Join(dir, "partitions")
	entries, err := os.ReadDir(partsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return nil, wrapRead("topic partitions", partsDir, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pid, perr := parseUint32(e.Name())
		if perr != nil {
			continue
		}
		p, err := loadPartition(filepath.Join(partsDir, e.Name()), pid, cfg, logger)
		if err != nil {
			return nil, err
		}
		t.partitions[pid] = p
	}

	groupsDir := filepath.Join(dir, "consumer_groups")
	if gentries, err := os.ReadDir(groupsDir); err == nil {
		for _, e := range gentries {
			gid, gerr := parseUint32(e.Name())
			if gerr != nil {
				continue
			}
			t.groups[gid] = newConsumerGroup(gid, partitionsCount)
		}
	}
	return t, nil
}

func (t *Topic) writeInfo() error {
	nameBytes := []byte(t.Name)
	buf := make([]byte, 4+4+4+len(nameBytes))
	binary.LittleEndian.PutUint32(buf[0:4], t.ID)
	binary.LittleEndian.PutUint32(buf[4:8], t.PartitionsCount)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(nameBytes)))
	copy(buf[12:], nameBytes)
	if err := writeFileAtomic(topicInfoPath(t.dir), buf); err != nil {
		return wrapSave("topic info", t.dir, err)
	}
	return nil
}

func readTopicInfo(path string) (name string, partitionsCount uint32, err error) {
	buf, rerr := os.ReadFile(path)
	if rerr != nil {
		return "", 0, wrapRead("topic info", path, rerr)
	}
	if len(buf) < 12 {
		return "", 0, ErrInvalidFormat
	}
	partitionsCount = binary.LittleEndian.Uint32(buf[4:8])
	nameLen := binary.LittleEndian.Uint32(buf[8:12])
	if len(buf) < int(12+nameLen) {
		return "", 0, ErrInvalidFormat
	}
	name = string(buf[12 : 12+nameLen])
	return name, partitionsCount, nil
}

// Send routes a batch of messages to a partition according to keyKind and
// keyValue, returning the partition id used and the offset assigned to the
// first message.
func (t *Topic) Send(keyKind KeyKind, keyValue uint32, messages []*Message) (partitionID uint32, firstOffset uint64, err error) {
	switch keyKind {
	case KeyKindNone:
		n := atomic.AddUint32(&t.rrCursor, 1)
		partitionID = ((n - 1) % t.PartitionsCount) + 1
	case KeyKindPartitionID:
		partitionID = keyValue
	case KeyKindEntityID:
		if keyValue == 0 {
			return 0, 0, ErrInvalidOffset
		}
		partitionID = ((keyValue - 1) % t.PartitionsCount) + 1
	default:
		return 0, 0, ErrInvalidCommand
	}

	p, ok := t.partitions[partitionID]
	if !ok {
		return partitionID, 0, &PartitionNotFoundError{StreamID: t.StreamID, TopicID: t.ID, PartitionID: partitionID}
	}
	off, err := p.Append(messages)
	return partitionID, off, err
}

// ResolvePollPartition determines which partition a poll request targets,
// handling plain-consumer direct routing and consumer-group assignment
// resolution (§4.c).
func (t *Topic) ResolvePollPartition(consumerKind ConsumerKind, clientID, groupID, partitionID uint32) (uint32, error) {
	if consumerKind == ConsumerKindConsumer {
		if _, ok := t.partitions[partitionID]; !ok {
			return 0, &PartitionNotFoundError{StreamID: t.StreamID, TopicID: t.ID, PartitionID: partitionID}
		}
		return partitionID, nil
	}

	// ConsumerKindGroup.
	if partitionID != 0 {
		if _, ok := t.partitions[partitionID]; !ok {
			return 0, &PartitionNotFoundError{StreamID: t.StreamID, TopicID: t.ID, PartitionID: partitionID}
		}
		return partitionID, nil
	}

	g, err := t.GetGroup(groupID)
	if err != nil {
		return 0, err
	}
	pid, ok, err := g.NextPartition(clientID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return pid, nil
}

// Partition returns the partition with the given id.
func (t *Topic) Partition(id uint32) (*Partition, error) {
	p, ok := t.partitions[id]
	if !ok {
		return nil, &PartitionNotFoundError{StreamID: t.StreamID, TopicID: t.ID, PartitionID: id}
	}
	return p, nil
}

// OnPartitionRoll registers fn against every current partition so a roll
// on any of them invokes fn, used to wire per-topic segment-roll metrics
// without the streaming package depending on a metrics type.
func (t *Topic) OnPartitionRoll(fn func()) {
	for _, p := range t.partitions {
		p.OnRoll(fn)
	}
}

// PartitionIDs returns every partition id belonging to the topic, sorted.
func (t *Topic) PartitionIDs() []uint32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]uint32, 0, len(t.partitions))
	for id := range t.partitions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (t *Topic) CreateGroup(id uint32) (*ConsumerGroup, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.groups[id]; exists {
		return nil, &ConsumerGroupAlreadyExistsError{StreamID: t.StreamID, TopicID: t.ID, GroupID: id}
	}
	groupsDir := filepath.Join(t.dir, "consumer_groups")
	if err := os.MkdirAll(groupsDir, 0755); err != nil {
		return nil, wrapCreate("consumer group", groupsDir, err)
	}
	if err := os.WriteFile(filepath.Join(groupsDir, itoa(id)), nil, 0644); err != nil {
		return nil, wrapCreate("consumer group", groupsDir, err)
	}
	g := newConsumerGroup(id, t.PartitionsCount)
	t.groups[id] = g
	return g, nil
}

func (t *Topic) DeleteGroup(id uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.groups[id]; !exists {
		return &ConsumerGroupNotFoundError{StreamID: t.StreamID, TopicID: t.ID, GroupID: id}
	}
	delete(t.groups, id)
	path := filepath.Join(t.dir, "consumer_groups", itoa(id))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return wrapDelete("consumer group", path, err)
	}
	return nil
}

func (t *Topic) GetGroup(id uint32) (*ConsumerGroup, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	g, ok := t.groups[id]
	if !ok {
		return nil, &ConsumerGroupNotFoundError{StreamID: t.StreamID, TopicID: t.ID, GroupID: id}
	}
	return g, nil
}

// GroupIDs returns all consumer group ids owned by the topic, sorted.
func (t *Topic) GroupIDs() []uint32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]uint32, 0, len(t.groups))
	for id := range t.groups {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (t *Topic) Close() error {
	var firstErr error
	for _, p := range t.partitions {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *Topic) Remove() error {
	for _, p := range t.partitions {
		p.Close()
	}
	if err := os.RemoveAll(t.dir); err != nil {
		return wrapDelete("topic", t.dir, err)
	}
	return nil
}
