package streaming

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopic_SendRoundRobinsWithNoKey(t *testing.T) {
	tp, err := createTopic(t.TempDir(), 1, 1, "clicks", 3, testSegmentConfig(), nil)
	require.NoError(t, err)
	defer tp.Close()

	seen := map[uint32]bool{}
	for i := 0; i < 3; i++ {
		pid, _, err := tp.Send(KeyKindNone, 0, []*Message{{Payload: []byte("x")}})
		require.NoError(t, err)
		seen[pid] = true
	}
	assert.Len(t, seen, 3)
}

func TestTopic_SendByPartitionID(t *testing.T) {
	tp, err := createTopic(t.TempDir(), 1, 1, "clicks", 3, testSegmentConfig(), nil)
	require.NoError(t, err)
	defer tp.Close()

	pid, _, err := tp.Send(KeyKindPartitionID, 2, []*Message{{Payload: []byte("x")}})
	require.NoError(t, err)
	assert.Equal(t, uint32(2), pid)
}

func TestTopic_SendByEntityIDIsDeterministic(t *testing.T) {
	tp, err := createTopic(t.TempDir(), 1, 1, "clicks", 3, testSegmentConfig(), nil)
	require.NoError(t, err)
	defer tp.Close()

	pid1, _, err := tp.Send(KeyKindEntityID, 55, []*Message{{Payload: []byte("x")}})
	require.NoError(t, err)
	pid2, _, err := tp.Send(KeyKindEntityID, 55, []*Message{{Payload: []byte("y")}})
	require.NoError(t, err)
	assert.Equal(t, pid1, pid2)
}

func TestTopic_SendToUnknownPartitionErrors(t *testing.T) {
	tp, err := createTopic(t.TempDir(), 1, 1, "clicks", 2, testSegmentConfig(), nil)
	require.NoError(t, err)
	defer tp.Close()

	_, _, err = tp.Send(KeyKindPartitionID, 99, []*Message{{Payload: []byte("x")}})
	var notFound *PartitionNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestTopic_GroupLifecycle(t *testing.T) {
	tp, err := createTopic(t.TempDir(), 1, 1, "clicks", 2, testSegmentConfig(), nil)
	require.NoError(t, err)
	defer tp.Close()

	g, err := tp.CreateGroup(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), g.ID)

	_, err = tp.CreateGroup(1)
	var exists *ConsumerGroupAlreadyExistsError
	require.ErrorAs(t, err, &exists)

	got, err := tp.GetGroup(1)
	require.NoError(t, err)
	assert.Same(t, g, got)

	require.NoError(t, tp.DeleteGroup(1))
	_, err = tp.GetGroup(1)
	var notFound *ConsumerGroupNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestTopic_ResolvePollPartitionForGroup(t *testing.T) {
	tp, err := createTopic(t.TempDir(), 1, 1, "clicks", 2, testSegmentConfig(), nil)
	require.NoError(t, err)
	defer tp.Close()

	g, err := tp.CreateGroup(1)
	require.NoError(t, err)
	g.Join(42)

	pid, err := tp.ResolvePollPartition(ConsumerKindGroup, 42, 1, 0)
	require.NoError(t, err)
	assert.NotZero(t, pid)
}

func TestTopic_OnPartitionRollAppliesToEveryPartition(t *testing.T) {
	cfg := tinySegmentConfig()
	tp, err := createTopic(t.TempDir(), 1, 1, "clicks", 2, cfg, nil)
	require.NoError(t, err)
	defer tp.Close()

	rolls := 0
	tp.OnPartitionRoll(func() { rolls++ })

	for i := 0; i < 5; i++ {
		_, _, err := tp.Send(KeyKindPartitionID, 1, []*Message{{Payload: []byte("x")}})
		require.NoError(t, err)
	}
	assert.Greater(t, rolls, 0)

	afterFirst := rolls
	for i := 0; i < 5; i++ {
		_, _, err := tp.Send(KeyKindPartitionID, 2, []*Message{{Payload: []byte("x")}})
		require.NoError(t, err)
	}
	assert.Greater(t, rolls, afterFirst)
}
