package streaming

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSystemConfig() Config {
	return Config{
		MaxSegmentSize:         1 << 20,
		IndexIntervalBytes:     1,
		MessagesRequiredToSave: 1,
		DefaultPartitionsCount: 1,
	}
}

func newTestSystem(t *testing.T) *System {
	t.Helper()
	s, err := NewSystem(t.TempDir(), nil, testSystemConfig())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// S1: append then replay the same messages back in order.
func TestSystem_AppendAndReplay(t *testing.T) {
	s := newTestSystem(t)
	_, err := s.CreateStream(1, "orders")
	require.NoError(t, err)
	_, err = s.CreateTopic(1, 1, "events", 1)
	require.NoError(t, err)

	_, firstOffset, err := s.Send(1, 1, KeyKindPartitionID, 1, []*Message{
		{Payload: []byte("one")},
		{Payload: []byte("two")},
		{Payload: []byte("three")},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), firstOffset)

	msgs, err := s.Poll(1, 1, ConsumerKindConsumer, 0, 0, 1, PollRequest{Kind: PollFirst, Count: 10})
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, []byte("one"), msgs[0].Payload)
	assert.Equal(t, []byte("two"), msgs[1].Payload)
	assert.Equal(t, []byte("three"), msgs[2].Payload)
}

// S2: segment rolls transparently across a batch.
func TestSystem_SegmentRollIsTransparentToReplay(t *testing.T) {
	cfg := testSystemConfig()
	cfg.MaxSegmentSize = int64(headerSize + 5)
	s, err := NewSystem(t.TempDir(), nil, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.CreateStream(1, "orders")
	require.NoError(t, err)
	_, err = s.CreateTopic(1, 1, "events", 1)
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		_, _, err := s.Send(1, 1, KeyKindPartitionID, 1, []*Message{{Payload: []byte("x")}})
		require.NoError(t, err)
	}

	msgs, err := s.Poll(1, 1, ConsumerKindConsumer, 0, 0, 1, PollRequest{Kind: PollFirst, Count: 100})
	require.NoError(t, err)
	assert.Len(t, msgs, 6)
	for i, m := range msgs {
		assert.Equal(t, uint64(i), m.Offset)
	}
}

// S3: seek by timestamp.
func TestSystem_PollByTimestamp(t *testing.T) {
	s := newTestSystem(t)
	_, err := s.CreateStream(1, "orders")
	require.NoError(t, err)
	_, err = s.CreateTopic(1, 1, "events", 1)
	require.NoError(t, err)

	_, _, err = s.Send(1, 1, KeyKindPartitionID, 1, []*Message{{Payload: []byte("a")}})
	require.NoError(t, err)

	msgs, err := s.Poll(1, 1, ConsumerKindConsumer, 0, 0, 1, PollRequest{Kind: PollTimestamp, Value: 0, Count: 10})
	require.NoError(t, err)
	require.NotEmpty(t, msgs)
}

// S4: consumer group balance across members.
func TestSystem_GroupBalance(t *testing.T) {
	s := newTestSystem(t)
	_, err := s.CreateStream(1, "orders")
	require.NoError(t, err)
	_, err = s.CreateTopic(1, 1, "events", 4)
	require.NoError(t, err)
	_, err = s.CreateGroup(1, 1, 1)
	require.NoError(t, err)

	a := s.Connect("127.0.0.1:1001")
	b := s.Connect("127.0.0.1:1002")
	require.NoError(t, s.JoinGroup(1, 1, 1, a.ID))
	require.NoError(t, s.JoinGroup(1, 1, 1, b.ID))

	g, err := s.GetGroup(1, 1, 1)
	require.NoError(t, err)
	assignments := g.Assignments()
	assert.Len(t, assignments[a.ID], 2)
	assert.Len(t, assignments[b.ID], 2)

	require.NoError(t, s.LeaveGroup(1, 1, 1, a.ID))
	assignments = g.Assignments()
	assert.Len(t, assignments[b.ID], 4)
}

// S5: group poll round-robins across partitions per member.
func TestSystem_GroupPollRoundRobin(t *testing.T) {
	s := newTestSystem(t)
	_, err := s.CreateStream(1, "orders")
	require.NoError(t, err)
	_, err = s.CreateTopic(1, 1, "events", 2)
	require.NoError(t, err)
	_, err = s.CreateGroup(1, 1, 1)
	require.NoError(t, err)
	c := s.Connect("127.0.0.1:1001")
	require.NoError(t, s.JoinGroup(1, 1, 1, c.ID))

	_, _, err = s.Send(1, 1, KeyKindPartitionID, 1, []*Message{{Payload: []byte("from-p1")}})
	require.NoError(t, err)
	_, _, err = s.Send(1, 1, KeyKindPartitionID, 2, []*Message{{Payload: []byte("from-p2")}})
	require.NoError(t, err)

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		msgs, err := s.Poll(1, 1, ConsumerKindGroup, c.ID, 1, 0, PollRequest{Kind: PollFirst, Count: 10})
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		seen[string(msgs[0].Payload)] = true
	}
	assert.Len(t, seen, 2)
}

// S5 (strict): entity keys spread messages over partitions 1,2,3,1,2,...;
// repeated group Next polls with auto-commit drain them interleaved by
// partition, in per-partition append order.
func TestSystem_GroupNextPollDrainsPartitionsInOrder(t *testing.T) {
	s := newTestSystem(t)
	_, err := s.CreateStream(1, "orders")
	require.NoError(t, err)
	_, err = s.CreateTopic(1, 1, "events", 3)
	require.NoError(t, err)
	_, err = s.CreateGroup(1, 1, 1)
	require.NoError(t, err)
	c := s.Connect("127.0.0.1:1001")
	require.NoError(t, s.JoinGroup(1, 1, 1, c.ID))

	for k := uint32(1); k <= 9; k++ {
		_, _, err := s.Send(1, 1, KeyKindEntityID, k, []*Message{{Payload: []byte{byte('0' + k)}}})
		require.NoError(t, err)
	}

	var got []byte
	for i := 0; i < 9; i++ {
		msgs, err := s.Poll(1, 1, ConsumerKindGroup, c.ID, 1, 0,
			PollRequest{Kind: PollNext, Count: 1, AutoCommit: true})
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		got = append(got, msgs[0].Payload[0])
	}
	assert.Equal(t, "123456789", string(got))
}

// S6: corruption in one partition's tail segment is recovered on reload
// without losing the valid prefix.
func TestSystem_CorruptionRecoveryAcrossReload(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSystem(dir, nil, testSystemConfig())
	require.NoError(t, err)
	_, err = s.CreateStream(1, "orders")
	require.NoError(t, err)
	_, err = s.CreateTopic(1, 1, "events", 1)
	require.NoError(t, err)
	_, _, err = s.Send(1, 1, KeyKindPartitionID, 1, []*Message{{Payload: []byte("good")}})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	logPath := filepath.Join(dir, "streams", "1", "topics", "1", "partitions", "1", segmentFileName(0)+".log")
	f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	_, err = f.Write([]byte{0xDE, 0xAD, 0xBE, 0xEF})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reloaded, err := NewSystem(dir, nil, testSystemConfig())
	require.NoError(t, err)
	t.Cleanup(func() { reloaded.Close() })

	msgs, err := reloaded.Poll(1, 1, ConsumerKindConsumer, 0, 0, 1, PollRequest{Kind: PollFirst, Count: 10})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, []byte("good"), msgs[0].Payload)
}

func TestSystem_OnSegmentRollObservesAlreadyLoadedTopics(t *testing.T) {
	cfg := testSystemConfig()
	cfg.MaxSegmentSize = int64(headerSize + 5)
	s, err := NewSystem(t.TempDir(), nil, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.CreateStream(1, "orders")
	require.NoError(t, err)
	_, err = s.CreateTopic(1, 1, "events", 1)
	require.NoError(t, err)

	var rolledStream, rolledTopic string
	rolls := 0
	s.OnSegmentRoll(func(stream, topic string) {
		rolls++
		rolledStream, rolledTopic = stream, topic
	})

	for i := 0; i < 4; i++ {
		_, _, err := s.Send(1, 1, KeyKindPartitionID, 1, []*Message{{Payload: []byte("x")}})
		require.NoError(t, err)
	}

	assert.Greater(t, rolls, 0)
	assert.Equal(t, "orders", rolledStream)
	assert.Equal(t, "events", rolledTopic)
}

func TestSystem_OnSegmentRollAppliesToNewlyCreatedTopics(t *testing.T) {
	cfg := testSystemConfig()
	cfg.MaxSegmentSize = int64(headerSize + 5)
	s, err := NewSystem(t.TempDir(), nil, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.CreateStream(1, "orders")
	require.NoError(t, err)

	rolls := 0
	s.OnSegmentRoll(func(stream, topic string) { rolls++ })

	_, err = s.CreateTopic(1, 1, "events", 1)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, _, err := s.Send(1, 1, KeyKindPartitionID, 1, []*Message{{Payload: []byte("x")}})
		require.NoError(t, err)
	}
	assert.Greater(t, rolls, 0)
}

func TestSystem_SecondInstanceOnSameBaseDirFailsToLock(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSystem(dir, nil, testSystemConfig())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = NewSystem(dir, nil, testSystemConfig())
	assert.Error(t, err)
}

func TestSystem_StoreAndGetOffset(t *testing.T) {
	s := newTestSystem(t)
	_, err := s.CreateStream(1, "orders")
	require.NoError(t, err)
	_, err = s.CreateTopic(1, 1, "events", 1)
	require.NoError(t, err)

	_, found, err := s.GetOffset(1, 1, 1, ConsumerKindConsumer, 5)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.StoreOffset(1, 1, 1, ConsumerKindConsumer, 5, 10))
	offset, found, err := s.GetOffset(1, 1, 1, ConsumerKindConsumer, 5)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(10), offset)
}

func TestSystem_ClientRegistry(t *testing.T) {
	s := newTestSystem(t)
	c := s.Connect("127.0.0.1:4000")
	assert.NotZero(t, c.ID)

	got, err := s.GetMe(c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Address, got.Address)

	require.NoError(t, s.Disconnect(c.ID))
	_, err = s.GetMe(c.ID)
	assert.Error(t, err)
}
