// Package ban implements the count-threshold report policy: per-pairing
// report de-duplication, escalating ban durations, and lazy expiry of
// bans on read. All state is in-memory and authoritative; downstream
// persistence and notification are best-effort side channels.
package ban

import (
	"sync"
	"time"
)

const (
	// ShortBanThreshold reports trigger a 30-minute ban; LongBanThreshold
	// reports escalate it to 24 hours (the longer ban supersedes).
	ShortBanThreshold = 3
	LongBanThreshold  = 5

	ShortBan = 30 * time.Minute
	LongBan  = 24 * time.Hour

	// StaleAfter is how long an untouched report record survives before
	// the hygiene sweep drops it.
	StaleAfter = 7 * 24 * time.Hour
)

// Clock supplies the current time; injectable for deterministic tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Notice describes an accepted report, for fire-and-forget observers
// (audit log, moderator feed).
type Notice struct {
	ReporterID string
	ReportedID string
	Count      int
	Banned     bool
	BanUntil   time.Time
}

type record struct {
	count        int
	lastReportAt time.Time
	banUntil     time.Time
}

type dedupKey struct {
	reporter, reported string
}

// Policy tracks report counts and active bans per user.
type Policy struct {
	mu       sync.Mutex
	clock    Clock
	records  map[string]*record
	seen     map[dedupKey]struct{} // one report per (reporter, reported) per pairing
	onReport func(Notice)
}

// NewPolicy creates an empty policy using the system clock.
func NewPolicy() *Policy {
	return &Policy{
		clock:   systemClock{},
		records: make(map[string]*record),
		seen:    make(map[dedupKey]struct{}),
	}
}

// SetClock overrides the policy's time source.
func (p *Policy) SetClock(c Clock) { p.clock = c }

// SetOnReport registers an observer invoked (in its own goroutine) for
// every accepted report. The observer must tolerate being called
// concurrently and must not assume delivery ordering.
func (p *Policy) SetOnReport(fn func(Notice)) { p.onReport = fn }

// Report files a report from reporterID against reportedID. Returns false
// when this reporter already reported this partner during the current
// pairing. Crossing a threshold applies the corresponding ban.
func (p *Policy) Report(reporterID, reportedID string) bool {
	p.mu.Lock()

	k := dedupKey{reporter: reporterID, reported: reportedID}
	if _, dup := p.seen[k]; dup {
		p.mu.Unlock()
		return false
	}
	p.seen[k] = struct{}{}

	now := p.clock.Now()
	rec, ok := p.records[reportedID]
	if !ok {
		rec = &record{}
		p.records[reportedID] = rec
	}
	rec.count++
	rec.lastReportAt = now

	switch {
	case rec.count >= LongBanThreshold:
		rec.banUntil = now.Add(LongBan)
	case rec.count >= ShortBanThreshold:
		rec.banUntil = now.Add(ShortBan)
	}

	notice := Notice{
		ReporterID: reporterID,
		ReportedID: reportedID,
		Count:      rec.count,
		Banned:     rec.banUntil.After(now),
		BanUntil:   rec.banUntil,
	}
	fn := p.onReport
	p.mu.Unlock()

	if fn != nil {
		go fn(notice)
	}
	return true
}

// ClearPair forgets the de-duplication state between two users, in both
// directions. The engine calls this whenever their pairing ends so a new
// pairing starts with a clean slate.
func (p *Policy) ClearPair(a, b string) {
	p.mu.Lock()
	delete(p.seen, dedupKey{reporter: a, reported: b})
	delete(p.seen, dedupKey{reporter: b, reported: a})
	p.mu.Unlock()
}

// IsBanned reports whether the user is currently banned and, if so, when
// the ban lifts. An expired ban is cleared on read — no background sweep
// is needed for correctness.
func (p *Policy) IsBanned(userID string) (bool, time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.records[userID]
	if !ok || rec.banUntil.IsZero() {
		return false, time.Time{}
	}
	if !p.clock.Now().Before(rec.banUntil) {
		rec.banUntil = time.Time{}
		return false, time.Time{}
	}
	return true, rec.banUntil
}

// Sweep drops report records untouched for longer than StaleAfter that
// carry no active ban. Hygiene only; lazy checks stay authoritative.
// Returns the number of records removed.
func (p *Policy) Sweep() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	removed := 0
	for userID, rec := range p.records {
		if now.Sub(rec.lastReportAt) > StaleAfter && !now.Before(rec.banUntil) {
			delete(p.records, userID)
			removed++
		}
	}
	return removed
}
