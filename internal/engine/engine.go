// Package engine implements the matchmaking and pairing core: the waiting
// queue, the symmetric pair registry, the per-user session state machine,
// skip/undo records, and the reveal handshake.
//
// The engine owns all live pairing state and serializes every mutating
// operation behind one mutex, so no caller ever observes a half-updated
// pairing (queue scan, removal, and registry insert happen as one step).
// Operations return an ordered slice of outbound events instead of calling
// into the transport; callers deliver those events after the operation
// returns, outside the critical section. Nothing here blocks on I/O.
package engine

import (
	"sync"
	"time"

	"github.com/duet/chat-app/internal/metrics"
	"github.com/duet/chat-app/internal/session"
)

// UndoWindow is how long after a skip the broken pairing can be restored.
const UndoWindow = 10 * time.Second

// ReportPolicy is the count-threshold abuse policy the engine calls when a
// user reports their partner. Report returns false when this reporter has
// already reported this partner during the current pairing. ClearPair
// drops the per-pair de-duplication state once the pairing ends.
type ReportPolicy interface {
	Report(reporterID, reportedID string) bool
	ClearPair(a, b string)
}

// StatsRecorder receives per-user counter updates. Implementations must
// not block: the engine invokes these while holding its lock and expects
// fire-and-forget persistence (errors logged, never propagated).
type StatsRecorder interface {
	ChatStarted(userID string)
	ChatEnded(userID string, duration time.Duration)
	MessageForwarded(userID string)
}

type skipRecord struct {
	PartnerID      string
	PartnerAddress string
	At             time.Time
}

// Engine is the pairing orchestrator. Construct one per process with New
// and share it across the transport layer.
type Engine struct {
	mu sync.Mutex

	clock    Clock
	sessions *session.Store
	reports  ReportPolicy
	stats    StatsRecorder

	queue   *waitQueue
	pairs   *pairRegistry
	skips   map[string]*skipRecord
	reveals map[pairKey]string // unordered pair -> requester
	addrs   map[string]string  // last known delivery address per user
}

// New creates an engine bound to the given session store and report
// policy. The clock defaults to the system clock and stats recording is
// off until SetStats is called.
func New(sessions *session.Store, reports ReportPolicy) *Engine {
	return &Engine{
		clock:    systemClock{},
		sessions: sessions,
		reports:  reports,
		queue:    newWaitQueue(),
		pairs:    newPairRegistry(),
		skips:    make(map[string]*skipRecord),
		reveals:  make(map[pairKey]string),
		addrs:    make(map[string]string),
	}
}

// SetClock overrides the engine's time source.
func (e *Engine) SetClock(c Clock) { e.clock = c }

// SetStats registers a recorder for per-user chat/message counters.
func (e *Engine) SetStats(s StatsRecorder) { e.stats = s }

// Join enters the user into matchmaking. If filters is non-nil its fields
// update the session's declared attributes; otherwise the attributes
// already on the session are used (which is how skip re-enters with prior
// filters). The earliest compatible queued user wins; with no candidate
// the caller is appended to the queue.
func (e *Engine) Join(userID, address string, filters *Filters) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.addrs[userID] = address

	if _, ok := e.pairs.Partner(userID); ok {
		return []Event{{Kind: EventAlreadyChatting, UserID: userID, Address: address}}
	}
	if e.queue.Contains(userID) {
		return []Event{{Kind: EventAlreadyWaiting, UserID: userID, Address: address}}
	}

	if filters != nil {
		e.sessions.SetProfile(userID, filters.Gender, filters.Preference, filters.Language)
	}
	sess := e.sessions.Get(userID)
	f := Filters{Gender: sess.Gender, Preference: sess.Preference, Language: sess.Language}

	e.sessions.SetState(userID, session.StateSearching)

	now := e.clock.Now()
	if cand := e.queue.FirstCompatible(userID, f); cand != nil {
		e.queue.Remove(cand.UserID)
		metrics.QueueSize.Set(float64(e.queue.Len()))
		metrics.MatchWaitSeconds.Observe(now.Sub(cand.JoinedAt).Seconds())
		return []Event{e.link(userID, address, cand.UserID, cand.Address, now, "queue")}
	}

	e.queue.Push(&queueEntry{UserID: userID, Address: address, Filters: f, JoinedAt: now})
	metrics.QueueSize.Set(float64(e.queue.Len()))
	return []Event{{Kind: EventWaiting, UserID: userID, Address: address}}
}

// Leave removes the user from matchmaking and, if paired, breaks the
// pairing and notifies the partner. Always resets the user's session to
// idle and drops their bookkeeping (delivery address, skip record).
func (e *Engine) Leave(userID string) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	var events []Event

	if e.queue.Remove(userID) {
		metrics.QueueSize.Set(float64(e.queue.Len()))
	}
	if p, ok := e.breakPair(userID); ok {
		events = append(events, Event{Kind: EventPartnerLeft, UserID: p.UserID, Address: p.Address})
	}

	e.sessions.SetState(userID, session.StateIdle)
	delete(e.skips, userID)
	delete(e.addrs, userID)
	return events
}

// Skip leaves the current pairing and immediately re-enters search with
// the filters the user had, recording an undoable skip record first. The
// ex-partner is told the partner left; the skipper gets a distinct
// skipped event followed by the outcome of the rejoin. A skip by a user
// who was never paired degrades to leave-and-notify.
func (e *Engine) Skip(userID, address string) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.addrs[userID] = address

	p, paired := e.pairs.Partner(userID)
	if !paired {
		if e.queue.Remove(userID) {
			metrics.QueueSize.Set(float64(e.queue.Len()))
		}
		e.sessions.SetState(userID, session.StateIdle)
		return []Event{{Kind: EventNotInChat, UserID: userID, Address: address}}
	}

	now := e.clock.Now()

	// Capture the pairing before it is broken so an undo can restore it.
	e.skips[userID] = &skipRecord{PartnerID: p.UserID, PartnerAddress: p.Address, At: now}
	e.breakPair(userID)
	metrics.SkipsTotal.Inc()

	events := []Event{
		{Kind: EventSkipped, UserID: userID, Address: address},
		{Kind: EventPartnerLeft, UserID: p.UserID, Address: p.Address},
	}

	// Rejoin with the attributes already on the session.
	sess := e.sessions.Get(userID)
	f := Filters{Gender: sess.Gender, Preference: sess.Preference, Language: sess.Language}
	e.sessions.SetState(userID, session.StateSearching)

	if cand := e.queue.FirstCompatible(userID, f); cand != nil {
		e.queue.Remove(cand.UserID)
		metrics.QueueSize.Set(float64(e.queue.Len()))
		metrics.MatchWaitSeconds.Observe(now.Sub(cand.JoinedAt).Seconds())
		return append(events, e.link(userID, address, cand.UserID, cand.Address, now, "queue"))
	}

	e.queue.Push(&queueEntry{UserID: userID, Address: address, Filters: f, JoinedAt: now})
	metrics.QueueSize.Set(float64(e.queue.Len()))
	return append(events, Event{Kind: EventWaiting, UserID: userID, Address: address})
}

// UndoSkip restores the pairing broken by the user's most recent skip.
// Fails with undo_expired when no record exists or the window has passed
// (the record is deleted on expiry), and with partner_busy when the
// ex-partner has since been paired with someone else — in that case the
// record survives for further attempts within the window. A successful
// undo re-pairs unconditionally: compatibility is not re-evaluated.
func (e *Engine) UndoSkip(userID, address string) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.addrs[userID] = address

	rec, ok := e.skips[userID]
	now := e.clock.Now()
	if !ok || now.Sub(rec.At) > UndoWindow {
		delete(e.skips, userID)
		metrics.UndosTotal.WithLabelValues("expired").Inc()
		return []Event{{Kind: EventUndoExpired, UserID: userID, Address: address}}
	}

	if _, ok := e.pairs.Partner(userID); ok {
		return []Event{{Kind: EventAlreadyChatting, UserID: userID, Address: address}}
	}
	if _, busy := e.pairs.Partner(rec.PartnerID); busy {
		metrics.UndosTotal.WithLabelValues("busy").Inc()
		return []Event{{Kind: EventPartnerBusy, UserID: userID, Address: address}}
	}

	removedSelf := e.queue.Remove(userID)
	removedPartner := e.queue.Remove(rec.PartnerID)
	if removedSelf || removedPartner {
		metrics.QueueSize.Set(float64(e.queue.Len()))
	}
	delete(e.skips, userID)
	metrics.UndosTotal.WithLabelValues("ok").Inc()
	return []Event{e.link(userID, address, rec.PartnerID, rec.PartnerAddress, now, "undo")}
}

// ForwardMessage relays an opaque payload to the user's partner. The event
// carries the sender's ID so the transport can decide what, if anything,
// to show about the origin.
func (e *Engine) ForwardMessage(userID string, payload Payload) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.pairs.Partner(userID)
	if !ok {
		return []Event{{Kind: EventNotInChat, UserID: userID, Address: e.addrs[userID]}}
	}

	if e.stats != nil {
		e.stats.MessageForwarded(userID)
	}
	metrics.MessagesForwarded.Inc()
	return []Event{{
		Kind:      EventForwardMessage,
		UserID:    p.UserID,
		Address:   p.Address,
		PartnerID: userID,
		Payload:   &payload,
	}}
}

// Typing relays a typing indicator to the partner. No-op when unpaired.
// The engine is indicator-agnostic; the transport gates delivery on the
// recipient's preference.
func (e *Engine) Typing(userID string) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.pairs.Partner(userID)
	if !ok {
		return nil
	}
	return []Event{{Kind: EventTyping, UserID: p.UserID, Address: p.Address, PartnerID: userID}}
}

// ReportPartner files an abuse report against the current partner through
// the report policy. Duplicate reports within the same pairing are
// rejected as report_already_submitted.
func (e *Engine) ReportPartner(reporterID string) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.pairs.Partner(reporterID)
	if !ok {
		return []Event{{Kind: EventNotInChat, UserID: reporterID, Address: e.addrs[reporterID]}}
	}

	if !e.reports.Report(reporterID, p.UserID) {
		return []Event{{Kind: EventReportAlreadySubmitted, UserID: reporterID, Address: e.addrs[reporterID]}}
	}
	metrics.ReportsTotal.Inc()
	return []Event{{Kind: EventReportReceived, UserID: reporterID, Address: e.addrs[reporterID], PartnerID: p.UserID}}
}

// InChatWith returns the user's current partner, if any. Read-only helper
// for the transport layer.
func (e *Engine) InChatWith(userID string) (Partner, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pairs.Partner(userID)
}

// QueueLen returns the current waiting-queue length.
func (e *Engine) QueueLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.Len()
}

// link creates the symmetric pairing, moves both sessions to chatting,
// stamps the chat start, bumps counters, and returns the single matched
// event carrying both sides. Callers must hold e.mu and must have removed
// both users from the queue already.
func (e *Engine) link(aID, aAddr, bID, bAddr string, now time.Time, origin string) Event {
	e.pairs.Link(aID, aAddr, bID, bAddr)
	e.addrs[aID] = aAddr
	e.addrs[bID] = bAddr
	e.sessions.StartChat(aID, now)
	e.sessions.StartChat(bID, now)
	if e.stats != nil {
		e.stats.ChatStarted(aID)
		e.stats.ChatStarted(bID)
	}
	metrics.MatchesTotal.WithLabelValues(origin).Inc()
	metrics.ActivePairs.Set(float64(e.pairs.Pairs()))
	return Event{
		Kind:           EventMatched,
		UserID:         aID,
		Address:        aAddr,
		PartnerID:      bID,
		PartnerAddress: bAddr,
	}
}

// breakPair tears down userID's pairing if one exists: unlinks both
// registry entries, records chat duration for both sides, clears the
// pair-scoped report de-duplication and any pending reveal, and idles the
// partner's session. Callers must hold e.mu.
func (e *Engine) breakPair(userID string) (Partner, bool) {
	p, ok := e.pairs.Unlink(userID)
	if !ok {
		return Partner{}, false
	}

	if e.stats != nil {
		if sess, found := e.sessions.Lookup(userID); found && !sess.ChatStartedAt.IsZero() {
			d := e.clock.Now().Sub(sess.ChatStartedAt)
			e.stats.ChatEnded(userID, d)
			e.stats.ChatEnded(p.UserID, d)
		}
	}

	e.reports.ClearPair(userID, p.UserID)
	delete(e.reveals, keyFor(userID, p.UserID))
	e.sessions.SetState(p.UserID, session.StateIdle)
	metrics.ActivePairs.Set(float64(e.pairs.Pairs()))
	return p, true
}
