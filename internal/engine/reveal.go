package engine

// pairKey identifies an unordered pair of users. Reveal state is keyed by
// the pair, not by either individual, so both directions of a request land
// on the same record.
type pairKey struct {
	lo, hi string
}

func keyFor(a, b string) pairKey {
	if a < b {
		return pairKey{lo: a, hi: b}
	}
	return pairKey{lo: b, hi: a}
}

// RequestReveal asks to exchange identities with the current partner. If
// the partner already requested, the handshake completes immediately and
// both sides are notified; otherwise the one-sided request is stored until
// the partner answers or the pair breaks. A repeated request from the same
// side is answered with reveal_already_requested.
func (e *Engine) RequestReveal(userID string) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.pairs.Partner(userID)
	if !ok {
		return []Event{{Kind: EventNotInChat, UserID: userID, Address: e.addrs[userID]}}
	}

	k := keyFor(userID, p.UserID)
	requester, pending := e.reveals[k]

	switch {
	case pending && requester == userID:
		return []Event{{Kind: EventRevealAlreadyRequested, UserID: userID, Address: e.addrs[userID]}}

	case pending && requester == p.UserID:
		// Mutual consent: both asked, both learn who the other is.
		delete(e.reveals, k)
		return []Event{
			{Kind: EventRevealAccepted, UserID: userID, Address: e.addrs[userID], PartnerID: p.UserID},
			{Kind: EventRevealAccepted, UserID: p.UserID, Address: p.Address, PartnerID: userID},
		}

	default:
		e.reveals[k] = userID
		return []Event{{Kind: EventRevealRequested, UserID: p.UserID, Address: p.Address, PartnerID: userID}}
	}
}

// DeclineReveal rejects a pending reveal request between the user and the
// current partner. The record is cleared terminally; a later request
// starts fresh. Declining when nothing is pending is a no-op.
func (e *Engine) DeclineReveal(userID string) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.pairs.Partner(userID)
	if !ok {
		return []Event{{Kind: EventNotInChat, UserID: userID, Address: e.addrs[userID]}}
	}

	k := keyFor(userID, p.UserID)
	if _, pending := e.reveals[k]; !pending {
		return nil
	}
	delete(e.reveals, k)
	return []Event{
		{Kind: EventRevealDeclined, UserID: userID, Address: e.addrs[userID]},
		{Kind: EventRevealDeclined, UserID: p.UserID, Address: p.Address},
	}
}
