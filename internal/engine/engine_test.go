package engine

import (
	"testing"
	"time"

	"github.com/duet/chat-app/internal/session"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// stubPolicy records report calls and answers with a configurable verdict.
type stubPolicy struct {
	accept  bool
	reports [][2]string
	cleared [][2]string
}

func (p *stubPolicy) Report(reporterID, reportedID string) bool {
	p.reports = append(p.reports, [2]string{reporterID, reportedID})
	return p.accept
}

func (p *stubPolicy) ClearPair(a, b string) {
	p.cleared = append(p.cleared, [2]string{a, b})
}

func newTestEngine(t *testing.T) (*Engine, *fakeClock, *stubPolicy) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	policy := &stubPolicy{accept: true}
	sessions := session.NewStore()
	sessions.SetNow(clock.Now)
	e := New(sessions, policy)
	e.SetClock(clock)
	return e, clock, policy
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

func assertKinds(t *testing.T, events []Event, want ...EventKind) {
	t.Helper()
	got := kinds(events)
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, got)
		}
	}
}

func open() *Filters { return &Filters{} }

func TestJoinFirstUserWaits(t *testing.T) {
	e, _, _ := newTestEngine(t)

	events := e.Join("alice", "alice", open())
	assertKinds(t, events, EventWaiting)
	if e.QueueLen() != 1 {
		t.Fatalf("expected queue length 1, got %d", e.QueueLen())
	}
}

func TestJoinPairsCompatibleUsers(t *testing.T) {
	e, _, _ := newTestEngine(t)

	e.Join("alice", "alice", open())
	events := e.Join("bob", "bob", open())
	assertKinds(t, events, EventMatched)

	ev := events[0]
	if ev.UserID != "bob" || ev.PartnerID != "alice" {
		t.Fatalf("expected bob matched with alice, got %+v", ev)
	}
	if e.QueueLen() != 0 {
		t.Fatalf("expected empty queue after match, got %d", e.QueueLen())
	}

	p, ok := e.InChatWith("alice")
	if !ok || p.UserID != "bob" {
		t.Fatalf("expected alice paired with bob, got %+v ok=%v", p, ok)
	}
	p, ok = e.InChatWith("bob")
	if !ok || p.UserID != "alice" {
		t.Fatalf("expected bob paired with alice, got %+v ok=%v", p, ok)
	}
}

func TestJoinGuards(t *testing.T) {
	e, _, _ := newTestEngine(t)

	e.Join("alice", "alice", open())
	assertKinds(t, e.Join("alice", "alice", open()), EventAlreadyWaiting)

	e.Join("bob", "bob", open())
	assertKinds(t, e.Join("alice", "alice", open()), EventAlreadyChatting)
	assertKinds(t, e.Join("bob", "bob", open()), EventAlreadyChatting)
}

func TestJoinFIFOFairness(t *testing.T) {
	e, _, _ := newTestEngine(t)

	// Two mutually incompatible waiters; the open newcomer matches both
	// and must pair with the older one.
	e.Join("first", "first", &Filters{Gender: "f", Preference: "f", Language: "en"})
	e.Join("second", "second", &Filters{Gender: "m", Preference: "m", Language: "en"})

	events := e.Join("third", "third", open())
	assertKinds(t, events, EventMatched)
	if events[0].PartnerID != "first" {
		t.Fatalf("expected pairing with the earliest waiter, got %s", events[0].PartnerID)
	}
}

func TestJoinSkipsIncompatibleWaiter(t *testing.T) {
	e, _, _ := newTestEngine(t)

	e.Join("waiting-f", "waiting-f", &Filters{Gender: "f", Preference: "f", Language: "en"})
	events := e.Join("joining-m", "joining-m", &Filters{Gender: "m", Preference: "f", Language: "en"})

	// Waiter wants f, joiner is m: no pairing.
	assertKinds(t, events, EventWaiting)
	if e.QueueLen() != 2 {
		t.Fatalf("expected both users queued, got %d", e.QueueLen())
	}
}

func TestLeaveNotifiesPartner(t *testing.T) {
	e, _, _ := newTestEngine(t)

	e.Join("alice", "alice", open())
	e.Join("bob", "bob", open())

	events := e.Leave("alice")
	assertKinds(t, events, EventPartnerLeft)
	if events[0].UserID != "bob" {
		t.Fatalf("expected partner_left for bob, got %s", events[0].UserID)
	}

	if _, ok := e.InChatWith("alice"); ok {
		t.Fatal("alice should be unpaired after leave")
	}
	if _, ok := e.InChatWith("bob"); ok {
		t.Fatal("bob should be unpaired after alice leaves")
	}
}

func TestLeaveWhileWaiting(t *testing.T) {
	e, _, _ := newTestEngine(t)

	e.Join("alice", "alice", open())
	events := e.Leave("alice")
	if len(events) != 0 {
		t.Fatalf("expected no events, got %v", kinds(events))
	}
	if e.QueueLen() != 0 {
		t.Fatalf("expected empty queue, got %d", e.QueueLen())
	}
}

func TestSkipRejoinsAndPairsWithWaiter(t *testing.T) {
	e, _, _ := newTestEngine(t)

	e.Join("alice", "alice", open())
	e.Join("bob", "bob", open())
	e.Join("carol", "carol", open())

	events := e.Skip("alice", "alice")
	assertKinds(t, events, EventSkipped, EventPartnerLeft, EventMatched)
	if events[1].UserID != "bob" {
		t.Fatalf("expected partner_left for bob, got %s", events[1].UserID)
	}
	if events[2].PartnerID != "carol" {
		t.Fatalf("expected alice re-paired with carol, got %s", events[2].PartnerID)
	}

	if _, ok := e.InChatWith("bob"); ok {
		t.Fatal("bob should be unpaired after being skipped")
	}
}

func TestSkipWithEmptyQueue(t *testing.T) {
	e, _, _ := newTestEngine(t)

	e.Join("alice", "alice", open())
	e.Join("bob", "bob", open())

	events := e.Skip("alice", "alice")
	assertKinds(t, events, EventSkipped, EventPartnerLeft, EventWaiting)
	if e.QueueLen() != 1 {
		t.Fatalf("expected alice waiting, queue length %d", e.QueueLen())
	}
}

func TestSkipWhenNotPaired(t *testing.T) {
	e, _, _ := newTestEngine(t)

	e.Join("alice", "alice", open())
	events := e.Skip("alice", "alice")
	assertKinds(t, events, EventNotInChat)
	if e.QueueLen() != 0 {
		t.Fatalf("expected queue drained, got %d", e.QueueLen())
	}
}

func TestUndoSkipRestoresPair(t *testing.T) {
	e, clock, _ := newTestEngine(t)

	e.Join("alice", "alice", open())
	e.Join("bob", "bob", open())
	e.Skip("alice", "alice")

	clock.Advance(UndoWindow - 100*time.Millisecond)

	events := e.UndoSkip("alice", "alice")
	assertKinds(t, events, EventMatched)
	if events[0].PartnerID != "bob" {
		t.Fatalf("expected re-pairing with bob, got %s", events[0].PartnerID)
	}
	if e.QueueLen() != 0 {
		t.Fatalf("expected alice removed from queue, got %d", e.QueueLen())
	}

	p, ok := e.InChatWith("bob")
	if !ok || p.UserID != "alice" {
		t.Fatalf("expected bob paired with alice, got %+v ok=%v", p, ok)
	}
}

func TestUndoSkipExpired(t *testing.T) {
	e, clock, _ := newTestEngine(t)

	e.Join("alice", "alice", open())
	e.Join("bob", "bob", open())
	e.Skip("alice", "alice")

	clock.Advance(UndoWindow + 100*time.Millisecond)

	assertKinds(t, e.UndoSkip("alice", "alice"), EventUndoExpired)
	// The record is gone; retrying inside a fresh window still fails.
	assertKinds(t, e.UndoSkip("alice", "alice"), EventUndoExpired)
}

func TestUndoSkipWithoutSkip(t *testing.T) {
	e, _, _ := newTestEngine(t)

	assertKinds(t, e.UndoSkip("alice", "alice"), EventUndoExpired)
}

func TestUndoSkipNotReusable(t *testing.T) {
	e, _, _ := newTestEngine(t)

	e.Join("alice", "alice", open())
	e.Join("bob", "bob", open())
	e.Skip("alice", "alice")

	assertKinds(t, e.UndoSkip("alice", "alice"), EventMatched)
	// The record is consumed by a successful undo.
	assertKinds(t, e.UndoSkip("alice", "alice"), EventUndoExpired)
}

func TestUndoSkipPartnerBusy(t *testing.T) {
	e, _, _ := newTestEngine(t)

	e.Join("alice", "alice", open())
	e.Join("bob", "bob", open())
	e.Skip("alice", "alice")
	// Second skip while waiting drops alice from the queue but keeps the
	// undo record from the first skip.
	e.Skip("alice", "alice")

	// Bob pairs with someone else before the undo.
	e.Join("carol", "carol", open())
	e.Join("bob", "bob", open())

	assertKinds(t, e.UndoSkip("alice", "alice"), EventPartnerBusy)

	// The record survives a busy rejection: once bob frees up, the undo
	// still works within the window.
	e.Leave("carol")
	assertKinds(t, e.UndoSkip("alice", "alice"), EventMatched)
}

func TestForwardMessage(t *testing.T) {
	e, _, _ := newTestEngine(t)

	e.Join("alice", "alice", open())
	e.Join("bob", "bob", open())

	events := e.ForwardMessage("alice", Payload{Kind: "text", Text: "hello"})
	assertKinds(t, events, EventForwardMessage)

	ev := events[0]
	if ev.UserID != "bob" || ev.PartnerID != "alice" {
		t.Fatalf("expected delivery to bob from alice, got %+v", ev)
	}
	if ev.Payload == nil || ev.Payload.Text != "hello" {
		t.Fatalf("expected payload to survive forwarding, got %+v", ev.Payload)
	}
}

func TestForwardMessageUnpaired(t *testing.T) {
	e, _, _ := newTestEngine(t)

	assertKinds(t, e.ForwardMessage("alice", Payload{Kind: "text", Text: "hi"}), EventNotInChat)
}

func TestTypingUnpaired(t *testing.T) {
	e, _, _ := newTestEngine(t)

	if events := e.Typing("alice"); len(events) != 0 {
		t.Fatalf("expected no events, got %v", kinds(events))
	}
}

func TestTypingRelaysToPartner(t *testing.T) {
	e, _, _ := newTestEngine(t)

	e.Join("alice", "alice", open())
	e.Join("bob", "bob", open())

	events := e.Typing("alice")
	assertKinds(t, events, EventTyping)
	if events[0].UserID != "bob" {
		t.Fatalf("expected typing delivered to bob, got %s", events[0].UserID)
	}
}

func TestReportPartner(t *testing.T) {
	e, _, policy := newTestEngine(t)

	e.Join("alice", "alice", open())
	e.Join("bob", "bob", open())

	assertKinds(t, e.ReportPartner("alice"), EventReportReceived)
	if len(policy.reports) != 1 || policy.reports[0] != [2]string{"alice", "bob"} {
		t.Fatalf("expected one report alice->bob, got %v", policy.reports)
	}

	policy.accept = false
	assertKinds(t, e.ReportPartner("alice"), EventReportAlreadySubmitted)
}

func TestReportPartnerUnpaired(t *testing.T) {
	e, _, policy := newTestEngine(t)

	assertKinds(t, e.ReportPartner("alice"), EventNotInChat)
	if len(policy.reports) != 0 {
		t.Fatalf("expected no report calls, got %v", policy.reports)
	}
}

func TestBreakPairClearsReportDedup(t *testing.T) {
	e, _, policy := newTestEngine(t)

	e.Join("alice", "alice", open())
	e.Join("bob", "bob", open())
	e.Leave("alice")

	if len(policy.cleared) != 1 {
		t.Fatalf("expected one ClearPair call, got %v", policy.cleared)
	}
}

func TestSweepSkips(t *testing.T) {
	e, clock, _ := newTestEngine(t)

	e.Join("alice", "alice", open())
	e.Join("bob", "bob", open())
	e.Skip("alice", "alice")

	if n := e.SweepSkips(); n != 0 {
		t.Fatalf("expected nothing swept inside the window, got %d", n)
	}

	clock.Advance(UndoWindow + time.Second)
	if n := e.SweepSkips(); n != 1 {
		t.Fatalf("expected one record swept, got %d", n)
	}
}
