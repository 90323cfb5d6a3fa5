package streaming

import "sync"

// groupMember is one client's share of a consumer group's assignment.
type groupMember struct {
	clientID uint32
	assigned []uint32 // partition ids, ascending
	cursor   int      // round-robin cursor into assigned
}

// ConsumerGroup balances a topic's partitions across its current members
// and hands out partitions to members in round-robin order on each poll.
type ConsumerGroup struct {
	ID              uint32
	partitionsCount uint32

	mu      sync.Mutex
	members []*groupMember // ordered by join order
}

func newConsumerGroup(id, partitionsCount uint32) *ConsumerGroup {
	return &ConsumerGroup{ID: id, partitionsCount: partitionsCount}
}

// Join adds client as a member, re-balancing the group's partitions across
// all members. Joining twice is a no-op.
func (g *ConsumerGroup) Join(clientID uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, m := range g.members {
		if m.clientID == clientID {
			return
		}
	}
	g.members = append(g.members, &groupMember{clientID: clientID})
	g.rebalance()
}

// Leave removes client from the group, re-balancing the remainder. If the
// client was never a member, ConsumerGroupMemberNotFoundError is returned.
func (g *ConsumerGroup) Leave(clientID uint32) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, m := range g.members {
		if m.clientID == clientID {
			g.members = append(g.members[:i], g.members[i+1:]...)
			g.rebalance()
			return nil
		}
	}
	return &ConsumerGroupMemberNotFoundError{GroupID: g.ID, ClientID: clientID}
}

// rebalance distributes {1..=partitionsCount} across current members as
// evenly as possible: each member gets floor(P/M) or ceil(P/M) partitions,
// the larger shares going to the earliest-joined members. Must be called
// with g.mu held.
func (g *ConsumerGroup) rebalance() {
	m := len(g.members)
	if m == 0 {
		return
	}
	p := int(g.partitionsCount)
	base := p / m
	extra := p % m

	next := uint32(1)
	for i, member := range g.members {
		share := base
		if i < extra {
			share++
		}
		assigned := make([]uint32, 0, share)
		for j := 0; j < share; j++ {
			assigned = append(assigned, next)
			next++
		}
		member.assigned = assigned
		member.cursor = 0
	}
}

// NextPartition returns the next partition assigned to client in round-
// robin order over that member's assigned set, advancing the member's
// private cursor. ok is false (with a nil error) if the member has no
// partitions assigned; err is non-nil if client is not a member at all.
func (g *ConsumerGroup) NextPartition(clientID uint32) (partitionID uint32, ok bool, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, member := range g.members {
		if member.clientID != clientID {
			continue
		}
		if len(member.assigned) == 0 {
			return 0, false, nil
		}
		pid := member.assigned[member.cursor%len(member.assigned)]
		member.cursor++
		return pid, true, nil
	}
	return 0, false, &ConsumerGroupMemberNotFoundError{GroupID: g.ID, ClientID: clientID}
}

// Assignments returns a snapshot of clientID -> assigned partitions, used
// by tests and the admin surface to observe balance.
func (g *ConsumerGroup) Assignments() map[uint32][]uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[uint32][]uint32, len(g.members))
	for _, m := range g.members {
		cp := make([]uint32, len(m.assigned))
		copy(cp, m.assigned)
		out[m.clientID] = cp
	}
	return out
}
