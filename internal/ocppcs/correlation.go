package ocppcs

import (
	"hash/fnv"
	"sync"

	"github.com/google/uuid"
)

const pendingCallShards = 16

// PendingCallTable is the process-wide map from an outstanding Call's
// unique_id to the single-slot inbox its sender is waiting on. It is shared
// by every Session using the same Router and is the one structure in this
// runtime that must tolerate concurrent access from every connection's
// goroutine at once — grounded on the teacher's sync.RWMutex-guarded
// connection maps (tunnel.go, api.go), generalized from a single lock to a
// sharded one since this table is the hottest path in the whole runtime.
type PendingCallTable struct {
	shards [pendingCallShards]pendingShard
}

type pendingShard struct {
	mu      sync.Mutex
	waiters map[string]chan Frame
}

// NewPendingCallTable builds an empty table.
func NewPendingCallTable() *PendingCallTable {
	t := &PendingCallTable{}
	for i := range t.shards {
		t.shards[i].waiters = make(map[string]chan Frame)
	}
	return t
}

func (t *PendingCallTable) shardFor(uniqueID string) *pendingShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(uniqueID))
	return &t.shards[h.Sum32()%pendingCallShards]
}

// NewUniqueID generates a fresh OCPP-J unique_id. Overridable per Router for
// tests that need deterministic wire bytes.
func NewUniqueID() string {
	return uuid.NewString()
}

// Insert registers a new pending call and returns the channel its resolution
// will be delivered on. The channel has capacity 1 so Resolve never blocks
// on a waiter that has already given up (e.g. timed out).
func (t *PendingCallTable) Insert(uniqueID string) chan Frame {
	ch := make(chan Frame, 1)
	shard := t.shardFor(uniqueID)
	shard.mu.Lock()
	shard.waiters[uniqueID] = ch
	shard.mu.Unlock()
	return ch
}

// Resolve delivers a CallResult or CallError frame to the waiter registered
// under f.UniqueID, if any, and removes the entry. Returns false if no
// waiter was registered — the caller should log and drop the frame, per the
// "unknown unique_id is dropped with a warning" rule.
func (t *PendingCallTable) Resolve(f Frame) bool {
	shard := t.shardFor(f.UniqueID)
	shard.mu.Lock()
	ch, ok := shard.waiters[f.UniqueID]
	if ok {
		delete(shard.waiters, f.UniqueID)
	}
	shard.mu.Unlock()
	if !ok {
		return false
	}
	ch <- f
	return true
}

// Remove deletes a pending entry without resolving it, used when a Call
// times out or its Session closes.
func (t *PendingCallTable) Remove(uniqueID string) {
	shard := t.shardFor(uniqueID)
	shard.mu.Lock()
	delete(shard.waiters, uniqueID)
	shard.mu.Unlock()
}

// RemoveAllForSession closes out every pending call whose unique_id is in
// ids, delivering a session-closed CallError to each waiter so in-flight
// Router.Call goroutines unblock instead of leaking. Used by Session.Close.
func (t *PendingCallTable) RemoveAllForSession(ids []string) {
	for _, id := range ids {
		shard := t.shardFor(id)
		shard.mu.Lock()
		ch, ok := shard.waiters[id]
		if ok {
			delete(shard.waiters, id)
		}
		shard.mu.Unlock()
		if ok {
			ch <- NewCallError(id, ErrGenericError, ErrSessionClosed.Message, nil)
		}
	}
}
