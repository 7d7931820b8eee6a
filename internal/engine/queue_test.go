package engine

import (
	"testing"
	"time"
)

func entry(userID string, f Filters) *queueEntry {
	return &queueEntry{UserID: userID, Address: userID, Filters: f, JoinedAt: time.Now()}
}

func TestQueuePushRemove(t *testing.T) {
	q := newWaitQueue()

	q.Push(entry("a", Filters{}))
	q.Push(entry("b", Filters{}))
	q.Push(entry("c", Filters{}))

	if !q.Contains("b") {
		t.Fatal("expected b in queue")
	}
	if !q.Remove("b") {
		t.Fatal("expected removal of b to succeed")
	}
	if q.Remove("b") {
		t.Fatal("expected second removal of b to fail")
	}
	if q.Len() != 2 {
		t.Fatalf("expected length 2, got %d", q.Len())
	}

	// Order of the survivors is preserved.
	if got := q.FirstCompatible("x", Filters{}); got == nil || got.UserID != "a" {
		t.Fatalf("expected a first, got %+v", got)
	}
}

func TestQueueDuplicatePushPanics(t *testing.T) {
	q := newWaitQueue()
	q.Push(entry("a", Filters{}))

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate push")
		}
	}()
	q.Push(entry("a", Filters{}))
}

func TestQueueFirstCompatibleSkipsSelf(t *testing.T) {
	q := newWaitQueue()
	q.Push(entry("a", Filters{}))

	if got := q.FirstCompatible("a", Filters{}); got != nil {
		t.Fatalf("expected no candidate, got %+v", got)
	}
}

func TestQueueFirstCompatibleOrder(t *testing.T) {
	q := newWaitQueue()
	q.Push(entry("picky", Filters{Gender: "f", Preference: "f", Language: "en"}))
	q.Push(entry("older", Filters{}))
	q.Push(entry("newer", Filters{}))

	f := Filters{Gender: "m", Preference: "f", Language: "en"}
	got := q.FirstCompatible("joiner", f)
	if got == nil || got.UserID != "older" {
		t.Fatalf("expected the oldest compatible entry, got %+v", got)
	}
}

func TestRegistrySymmetry(t *testing.T) {
	r := newPairRegistry()
	r.Link("a", "addr-a", "b", "addr-b")

	pa, ok := r.Partner("a")
	if !ok || pa.UserID != "b" || pa.Address != "addr-b" {
		t.Fatalf("expected a->b, got %+v ok=%v", pa, ok)
	}
	pb, ok := r.Partner("b")
	if !ok || pb.UserID != "a" {
		t.Fatalf("expected b->a, got %+v ok=%v", pb, ok)
	}

	p, ok := r.Unlink("b")
	if !ok || p.UserID != "a" {
		t.Fatalf("expected unlink to return a, got %+v ok=%v", p, ok)
	}
	if _, ok := r.Partner("a"); ok {
		t.Fatal("expected a unpaired after unlink")
	}
	if r.Pairs() != 0 {
		t.Fatalf("expected zero pairs, got %d", r.Pairs())
	}
}

func TestRegistrySelfPairPanics(t *testing.T) {
	r := newPairRegistry()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on self-pairing")
		}
	}()
	r.Link("a", "addr", "a", "addr")
}

func TestRegistryDoublePairPanics(t *testing.T) {
	r := newPairRegistry()
	r.Link("a", "", "b", "")

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when pairing an already paired user")
		}
	}()
	r.Link("a", "", "c", "")
}
