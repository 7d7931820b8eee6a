package engine

// EventKind tags an outbound event produced by an engine operation.
type EventKind string

const (
	// Pairing lifecycle.
	EventMatched     EventKind = "matched"
	EventWaiting     EventKind = "waiting"
	EventPartnerLeft EventKind = "partner_left"
	EventSkipped     EventKind = "skipped"

	// Policy rejections — non-fatal outcomes, never errors.
	EventAlreadyChatting EventKind = "already_chatting"
	EventAlreadyWaiting  EventKind = "already_waiting"
	EventNotInChat       EventKind = "not_in_chat"
	EventUndoExpired     EventKind = "undo_expired"
	EventPartnerBusy     EventKind = "partner_busy"

	// In-chat relay.
	EventForwardMessage EventKind = "forward_message"
	EventTyping         EventKind = "typing"

	// Reveal handshake.
	EventRevealRequested        EventKind = "reveal_requested"
	EventRevealAccepted         EventKind = "reveal_accepted"
	EventRevealDeclined         EventKind = "reveal_declined"
	EventRevealAlreadyRequested EventKind = "reveal_already_requested"

	// Reporting.
	EventReportReceived         EventKind = "report_received"
	EventReportAlreadySubmitted EventKind = "report_already_submitted"
)

// Payload is the opaque content of a forwarded message: either plain text
// or a media descriptor. The engine never inspects it.
type Payload struct {
	Kind    string // "text" or "media"
	Text    string
	MediaID string
	Caption string
}

// Event is one outbound effect of an engine operation. Operations return
// an ordered slice of events; the transport layer drains the slice and
// performs the actual delivery, outside the engine's critical section.
//
// UserID/Address identify the recipient. PartnerID names the other side
// where relevant (the sender of a forwarded message, the new partner of a
// match). EventMatched is emitted once per pairing and carries both sides;
// the transport delivers it to each.
type Event struct {
	Kind           EventKind
	UserID         string
	Address        string
	PartnerID      string
	PartnerAddress string   // set on EventMatched only
	Payload        *Payload // set on EventForwardMessage only
}
