package streaming

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOffsetStore_StoreAndGet(t *testing.T) {
	s, err := openOffsetStore(t.TempDir())
	require.NoError(t, err)

	_, ok := s.Get(ConsumerKindConsumer, 1, 0)
	assert.False(t, ok)

	require.NoError(t, s.Store(ConsumerKindConsumer, 1, 0, 42))
	v, ok := s.Get(ConsumerKindConsumer, 1, 0)
	require.True(t, ok)
	assert.Equal(t, uint64(42), v)
}

func TestOffsetStore_DistinctConsumerKindsDoNotCollide(t *testing.T) {
	s, err := openOffsetStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Store(ConsumerKindConsumer, 1, 0, 5))
	require.NoError(t, s.Store(ConsumerKindGroup, 1, 0, 9))

	v, ok := s.Get(ConsumerKindConsumer, 1, 0)
	require.True(t, ok)
	assert.Equal(t, uint64(5), v)

	v, ok = s.Get(ConsumerKindGroup, 1, 0)
	require.True(t, ok)
	assert.Equal(t, uint64(9), v)
}

func TestOffsetStore_PersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	s, err := openOffsetStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Store(ConsumerKindConsumer, 3, 0, 77))

	reloaded, err := openOffsetStore(dir)
	require.NoError(t, err)
	v, ok := reloaded.Get(ConsumerKindConsumer, 3, 0)
	require.True(t, ok)
	assert.Equal(t, uint64(77), v)
}
