package engine

import (
	"fmt"
	"time"
)

// queueEntry is one waiting user: identity, delivery address, and the
// filters recorded when they joined.
type queueEntry struct {
	UserID   string
	Address  string
	Filters  Filters
	JoinedAt time.Time
}

// waitQueue is the ordered collection of users awaiting a match. Entries
// keep insertion order so the oldest compatible candidate always wins.
// A user appears at most once; violating that is a bug in the caller, so
// Push fails fast instead of repairing.
//
// The queue is not goroutine-safe on its own — the engine's mutex guards
// every access.
type waitQueue struct {
	entries []*queueEntry
	byUser  map[string]*queueEntry
}

func newWaitQueue() *waitQueue {
	return &waitQueue{byUser: make(map[string]*queueEntry)}
}

func (q *waitQueue) Len() int { return len(q.entries) }

func (q *waitQueue) Contains(userID string) bool {
	_, ok := q.byUser[userID]
	return ok
}

// Push appends an entry. Panics if the user is already queued — the
// at-most-one-entry invariant is the core correctness guarantee and a
// duplicate means an operation failed to clean up.
func (q *waitQueue) Push(e *queueEntry) {
	if _, ok := q.byUser[e.UserID]; ok {
		panic(fmt.Sprintf("engine: duplicate queue entry for user %s", e.UserID))
	}
	q.entries = append(q.entries, e)
	q.byUser[e.UserID] = e
}

// Remove deletes the entry for userID, preserving the order of the rest.
// Returns false if the user was not queued.
func (q *waitQueue) Remove(userID string) bool {
	if _, ok := q.byUser[userID]; !ok {
		return false
	}
	delete(q.byUser, userID)
	for i, e := range q.entries {
		if e.UserID == userID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	panic(fmt.Sprintf("engine: queue index desync for user %s", userID))
}

// FirstCompatible scans in insertion order and returns the earliest entry
// that is not userID itself and passes the compatibility predicate.
// Returns nil when no candidate qualifies. The entry is not removed.
func (q *waitQueue) FirstCompatible(userID string, f Filters) *queueEntry {
	for _, e := range q.entries {
		if e.UserID == userID {
			continue
		}
		if Compatible(f, e.Filters) {
			return e
		}
	}
	return nil
}
