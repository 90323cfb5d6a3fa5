package streaming

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tinySegmentConfig() segmentConfig {
	return segmentConfig{
		maxSegmentSize:         int64(headerSize + 5), // forces a roll after ~one small message
		indexIntervalBytes:     1,
		messagesRequiredToSave: 1,
	}
}

func TestPartition_AppendAssignsSequentialOffsets(t *testing.T) {
	p, err := createPartition(t.TempDir(), 1, testSegmentConfig(), nil)
	require.NoError(t, err)
	defer p.Close()

	first, err := p.Append([]*Message{{Payload: []byte("a")}, {Payload: []byte("b")}})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), first)
	assert.Equal(t, uint64(2), p.CurrentOffset())

	second, err := p.Append([]*Message{{Payload: []byte("c")}})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second)
}

func TestPartition_AppendRollsSegmentAndFiresCallback(t *testing.T) {
	p, err := createPartition(t.TempDir(), 1, tinySegmentConfig(), nil)
	require.NoError(t, err)
	defer p.Close()

	rolls := 0
	p.OnRoll(func() { rolls++ })

	for i := 0; i < 5; i++ {
		_, err := p.Append([]*Message{{Payload: []byte("x")}})
		require.NoError(t, err)
	}

	assert.Greater(t, p.SegmentCount(), 1)
	assert.Greater(t, rolls, 0)
}

func TestPartition_PollFirstAndLast(t *testing.T) {
	p, err := createPartition(t.TempDir(), 1, testSegmentConfig(), nil)
	require.NoError(t, err)
	defer p.Close()

	for i := 0; i < 5; i++ {
		_, err := p.Append([]*Message{{Payload: []byte{byte(i)}}})
		require.NoError(t, err)
	}

	first, err := p.Poll(PollRequest{Kind: PollFirst, Count: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, uint64(0), first[0].Offset)

	last, err := p.Poll(PollRequest{Kind: PollLast, Count: 2})
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, uint64(3), last[0].Offset)
	assert.Equal(t, uint64(4), last[1].Offset)
}

func TestPartition_PollNextTracksOffsetStoreAndAutoCommits(t *testing.T) {
	p, err := createPartition(t.TempDir(), 1, testSegmentConfig(), nil)
	require.NoError(t, err)
	defer p.Close()

	for i := 0; i < 3; i++ {
		_, err := p.Append([]*Message{{Payload: []byte{byte(i)}}})
		require.NoError(t, err)
	}

	req := PollRequest{Kind: PollNext, Count: 1, ConsumerKind: ConsumerKindConsumer, ConsumerID: 7, AutoCommit: true}

	got, err := p.Poll(req)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(0), got[0].Offset)

	got, err = p.Poll(req)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(1), got[0].Offset)

	stored, ok := p.offsets.Get(ConsumerKindConsumer, 7, p.id)
	require.True(t, ok)
	assert.Equal(t, uint64(1), stored)
}

func TestPartition_PollOffsetBeyondCurrentReturnsEmpty(t *testing.T) {
	p, err := createPartition(t.TempDir(), 1, testSegmentConfig(), nil)
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Append([]*Message{{Payload: []byte("a")}})
	require.NoError(t, err)

	got, err := p.Poll(PollRequest{Kind: PollOffset, Value: 99, Count: 10})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPartition_LoadRecoversSegmentsAndCurrentOffset(t *testing.T) {
	dir := t.TempDir()
	p, err := createPartition(dir, 1, testSegmentConfig(), nil)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, err := p.Append([]*Message{{Payload: []byte{byte(i)}}})
		require.NoError(t, err)
	}
	require.NoError(t, p.Close())

	reloaded, err := loadPartition(dir, 1, testSegmentConfig(), nil)
	require.NoError(t, err)
	defer reloaded.Close()

	assert.Equal(t, uint64(4), reloaded.CurrentOffset())
	assert.Equal(t, uint64(4), reloaded.MessagesCount())
}
