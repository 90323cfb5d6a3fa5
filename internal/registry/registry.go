// Package registry tracks connected clients for the lifetime of their
// connection: assigned ids, transport addresses, and the consumer-group
// memberships a client has joined across streams and topics.
package registry

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ErrClientNotFound is returned when a client id has no live registry entry.
var ErrClientNotFound = errors.New("client not found")

// Membership identifies one consumer-group join a client has made.
type Membership struct {
	StreamID uint32
	TopicID  uint32
	GroupID  uint32
}

// Client is one connection's registry entry. Its lifetime equals the
// connection's lifetime; it is created on connect and discarded on
// disconnect.
type Client struct {
	ID      uint32
	Address string

	mu          sync.Mutex
	memberships []Membership
}

// Memberships returns a snapshot of the client's current group joins.
func (c *Client) Memberships() []Membership {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Membership, len(c.memberships))
	copy(out, c.memberships)
	return out
}

func (c *Client) addMembership(m Membership) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.memberships {
		if existing == m {
			return
		}
	}
	c.memberships = append(c.memberships, m)
}

func (c *Client) removeMembership(streamID, topicID, groupID uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, m := range c.memberships {
		if m.StreamID == streamID && m.TopicID == topicID && m.GroupID == groupID {
			c.memberships = append(c.memberships[:i], c.memberships[i+1:]...)
			return
		}
	}
}

// LeaveFunc is invoked once per membership when a client disconnects, so
// the caller can propagate the leave to the owning consumer group.
type LeaveFunc func(m Membership, clientID uint32)

// Registry is the process-wide table of connected clients, assigning
// monotonically increasing ids the way the teacher's api.Server tracks
// requestCount/errorCount with atomics rather than a mutex-guarded counter.
type Registry struct {
	logger *zap.Logger
	nextID uint32 // atomic

	mu      sync.RWMutex
	clients map[uint32]*Client
}

// New creates an empty client registry.
func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{logger: logger, clients: make(map[uint32]*Client)}
}

// Connect assigns a fresh client id and registers an entry for address.
func (r *Registry) Connect(address string) *Client {
	id := atomic.AddUint32(&r.nextID, 1)
	c := &Client{ID: id, Address: address}

	r.mu.Lock()
	r.clients[id] = c
	r.mu.Unlock()

	r.logger.Debug("client connected", zap.Uint32("client_id", id), zap.String("address", address))
	return c
}

// Disconnect removes clientID's entry and invokes onLeave once per
// membership the client held, so the caller can remove it from each
// consumer group it had joined.
func (r *Registry) Disconnect(clientID uint32, onLeave LeaveFunc) error {
	r.mu.Lock()
	c, ok := r.clients[clientID]
	if !ok {
		r.mu.Unlock()
		return ErrClientNotFound
	}
	delete(r.clients, clientID)
	r.mu.Unlock()

	if onLeave != nil {
		for _, m := range c.Memberships() {
			onLeave(m, clientID)
		}
	}
	r.logger.Debug("client disconnected", zap.Uint32("client_id", clientID))
	return nil
}

// Get returns the live entry for clientID, the registry's get_me surface.
func (r *Registry) Get(clientID uint32) (*Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[clientID]
	if !ok {
		return nil, ErrClientNotFound
	}
	return c, nil
}

// List enumerates all live entries, sorted by id, the registry's
// get_clients surface.
func (r *Registry) List() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Join records that clientID has joined the consumer group identified by
// (streamID, topicID, groupID).
func (r *Registry) Join(clientID, streamID, topicID, groupID uint32) error {
	c, err := r.Get(clientID)
	if err != nil {
		return err
	}
	c.addMembership(Membership{StreamID: streamID, TopicID: topicID, GroupID: groupID})
	return nil
}

// Leave removes the (streamID, topicID, groupID) membership from clientID's
// tracked set without affecting the group itself; callers are responsible
// for propagating the leave to the owning ConsumerGroup.
func (r *Registry) Leave(clientID, streamID, topicID, groupID uint32) error {
	c, err := r.Get(clientID)
	if err != nil {
		return err
	}
	c.removeMembership(streamID, topicID, groupID)
	return nil
}

// Count returns the number of live client entries.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
