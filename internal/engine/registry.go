package engine

import "fmt"

// Partner is the far side of an active pairing as seen from one user:
// who they are linked to and where replies to that partner are delivered.
type Partner struct {
	UserID  string
	Address string
}

// pairRegistry is the symmetric user -> partner mapping for active 1:1
// links. The invariants — if A maps to B then B maps to A, one partner per
// user, no self-pairing — are enforced with panics because an asymmetric
// registry means the pairing guarantee is already broken and continuing
// would silently misroute messages.
//
// Not goroutine-safe; guarded by the engine's mutex.
type pairRegistry struct {
	links map[string]Partner
}

func newPairRegistry() *pairRegistry {
	return &pairRegistry{links: make(map[string]Partner)}
}

// Partner returns the partner record for userID, if any.
func (r *pairRegistry) Partner(userID string) (Partner, bool) {
	p, ok := r.links[userID]
	return p, ok
}

// Link inserts both halves of a pairing atomically.
func (r *pairRegistry) Link(aID, aAddr, bID, bAddr string) {
	if aID == bID {
		panic(fmt.Sprintf("engine: self-pairing attempted for user %s", aID))
	}
	if _, ok := r.links[aID]; ok {
		panic(fmt.Sprintf("engine: user %s already paired", aID))
	}
	if _, ok := r.links[bID]; ok {
		panic(fmt.Sprintf("engine: user %s already paired", bID))
	}
	r.links[aID] = Partner{UserID: bID, Address: bAddr}
	r.links[bID] = Partner{UserID: aID, Address: aAddr}
}

// Unlink removes both halves of userID's pairing and returns the former
// partner. Returns false if the user was not paired.
func (r *pairRegistry) Unlink(userID string) (Partner, bool) {
	p, ok := r.links[userID]
	if !ok {
		return Partner{}, false
	}
	back, ok := r.links[p.UserID]
	if !ok || back.UserID != userID {
		panic(fmt.Sprintf("engine: registry asymmetry between %s and %s", userID, p.UserID))
	}
	delete(r.links, userID)
	delete(r.links, p.UserID)
	return p, true
}

// Pairs returns the number of active pairings.
func (r *pairRegistry) Pairs() int { return len(r.links) / 2 }
