package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ConnectAssignsIncreasingIDs(t *testing.T) {
	r := New(nil)

	t.Run("first client gets id 1", func(t *testing.T) {
		c := r.Connect("127.0.0.1:1000")
		assert.Equal(t, uint32(1), c.ID)
	})

	t.Run("second client gets id 2", func(t *testing.T) {
		c := r.Connect("127.0.0.1:1001")
		assert.Equal(t, uint32(2), c.ID)
	})

	t.Run("list returns both sorted by id", func(t *testing.T) {
		clients := r.List()
		require.Len(t, clients, 2)
		assert.Equal(t, uint32(1), clients[0].ID)
		assert.Equal(t, uint32(2), clients[1].ID)
	})
}

func TestRegistry_GetMe(t *testing.T) {
	r := New(nil)
	c := r.Connect("10.0.0.5:9999")

	t.Run("returns the entry", func(t *testing.T) {
		got, err := r.Get(c.ID)
		require.NoError(t, err)
		assert.Equal(t, "10.0.0.5:9999", got.Address)
	})

	t.Run("unknown client errors", func(t *testing.T) {
		_, err := r.Get(999)
		assert.ErrorIs(t, err, ErrClientNotFound)
	})
}

func TestRegistry_JoinAndLeave(t *testing.T) {
	r := New(nil)
	c := r.Connect("addr")

	t.Run("join records membership", func(t *testing.T) {
		require.NoError(t, r.Join(c.ID, 1, 2, 3))
		assert.Equal(t, []Membership{{StreamID: 1, TopicID: 2, GroupID: 3}}, c.Memberships())
	})

	t.Run("joining twice is idempotent", func(t *testing.T) {
		require.NoError(t, r.Join(c.ID, 1, 2, 3))
		assert.Len(t, c.Memberships(), 1)
	})

	t.Run("leave removes the membership", func(t *testing.T) {
		require.NoError(t, r.Leave(c.ID, 1, 2, 3))
		assert.Empty(t, c.Memberships())
	})
}

func TestRegistry_DisconnectPropagatesLeave(t *testing.T) {
	r := New(nil)
	c := r.Connect("addr")
	require.NoError(t, r.Join(c.ID, 1, 2, 3))
	require.NoError(t, r.Join(c.ID, 1, 2, 4))

	var left []Membership
	err := r.Disconnect(c.ID, func(m Membership, clientID uint32) {
		assert.Equal(t, c.ID, clientID)
		left = append(left, m)
	})
	require.NoError(t, err)

	assert.Len(t, left, 2)
	_, err = r.Get(c.ID)
	assert.ErrorIs(t, err, ErrClientNotFound)
}

func TestRegistry_DisconnectUnknownClient(t *testing.T) {
	r := New(nil)
	err := r.Disconnect(42, nil)
	assert.ErrorIs(t, err, ErrClientNotFound)
}

func TestRegistry_Count(t *testing.T) {
	r := New(nil)
	assert.Equal(t, 0, r.Count())
	c1 := r.Connect("a")
	r.Connect("b")
	assert.Equal(t, 2, r.Count())
	require.NoError(t, r.Disconnect(c1.ID, nil))
	assert.Equal(t, 1, r.Count())
}
