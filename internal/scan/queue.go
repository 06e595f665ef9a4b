package scan

import (
	"sync"

	"github.com/vireodb/partscan/internal/wire"
)

// PartState tracks one partition's scan progress: its resume cursor and the
// host currently believed to lead it. An empty cursor means start of data.
type PartState struct {
	PartID int32
	Cursor []byte
	Leader wire.HostAddr
}

// PartQueue owns the set of partitions still needing work, indexed by the
// host assigned to serve them. Worker tasks of one round call TakeAssigned,
// Drop, Reassign, AdvanceCursor and Requeue concurrently; every mutation is
// linearizable per partition under one mutex.
//
// A partition is pending (assignable to its host), in flight (taken by a
// worker this round), or gone. Size covers pending and in-flight parts; it
// never increases, a leader change only moves a partition between hosts.
type PartQueue struct {
	mu     sync.Mutex
	parts  map[int32]*PartState            // every live partition
	byHost map[wire.HostAddr]map[int32]struct{} // pending partitions per host
}

// NewPartQueue populates the queue with the initial partition assignment.
func NewPartQueue(parts []PartState) *PartQueue {
	q := &PartQueue{
		parts:  make(map[int32]*PartState, len(parts)),
		byHost: make(map[wire.HostAddr]map[int32]struct{}),
	}
	for _, p := range parts {
		state := p
		q.parts[p.PartID] = &state
		q.assignLocked(p.PartID, p.Leader)
	}
	return q
}

// Size returns the count of partitions not yet exhausted or dropped.
func (q *PartQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.parts)
}

// Hosts returns the distinct hosts that currently own at least one pending
// partition.
func (q *PartQueue) Hosts() []wire.HostAddr {
	q.mu.Lock()
	defer q.mu.Unlock()

	hosts := make([]wire.HostAddr, 0, len(q.byHost))
	for host, pending := range q.byHost {
		if len(pending) > 0 {
			hosts = append(hosts, host)
		}
	}
	return hosts
}

// TakeAssigned removes and returns one partition pending on host, or false
// when none is. A taken partition stays counted by Size but cannot be taken
// again until requeued via AdvanceCursor, Reassign or Requeue.
func (q *PartQueue) TakeAssigned(host wire.HostAddr) (PartState, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending := q.byHost[host]
	for partID := range pending {
		delete(pending, partID)
		state := q.parts[partID]
		if state == nil {
			continue
		}
		return *state, true
	}
	return PartState{}, false
}

// Drop permanently removes a partition (exhausted or failed). Idempotent.
func (q *PartQueue) Drop(partID int32) {
	q.mu.Lock()
	defer q.mu.Unlock()

	state, ok := q.parts[partID]
	if !ok {
		return
	}
	delete(q.parts, partID)
	q.unassignLocked(partID, state.Leader)
}

// Reassign moves a partition to a new leader for the next round.
func (q *PartQueue) Reassign(partID int32, newLeader wire.HostAddr) {
	q.mu.Lock()
	defer q.mu.Unlock()

	state, ok := q.parts[partID]
	if !ok {
		return
	}
	q.unassignLocked(partID, state.Leader)
	state.Leader = newLeader
	q.assignLocked(partID, newLeader)
}

// AdvanceCursor stores the next resume cursor and makes the partition
// assignable to its current host again.
func (q *PartQueue) AdvanceCursor(partID int32, cursor []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()

	state, ok := q.parts[partID]
	if !ok {
		return
	}
	state.Cursor = cursor
	q.assignLocked(partID, state.Leader)
}

// Requeue makes a taken partition assignable again without changing its
// cursor or leader, e.g. after a connection-acquisition failure.
func (q *PartQueue) Requeue(partID int32) {
	q.mu.Lock()
	defer q.mu.Unlock()

	state, ok := q.parts[partID]
	if !ok {
		return
	}
	q.assignLocked(partID, state.Leader)
}

// Snapshot returns a copy of every live partition's state, for checkpoints.
func (q *PartQueue) Snapshot() []PartState {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]PartState, 0, len(q.parts))
	for _, state := range q.parts {
		out = append(out, *state)
	}
	return out
}

func (q *PartQueue) assignLocked(partID int32, host wire.HostAddr) {
	pending := q.byHost[host]
	if pending == nil {
		pending = make(map[int32]struct{})
		q.byHost[host] = pending
	}
	pending[partID] = struct{}{}
}

func (q *PartQueue) unassignLocked(partID int32, host wire.HostAddr) {
	if pending := q.byHost[host]; pending != nil {
		delete(pending, partID)
		if len(pending) == 0 {
			delete(q.byHost, host)
		}
	}
}
