// Package protocol defines the WebSocket message types exchanged between
// clients and the pairing server. All messages are JSON with a "type"
// discriminator in a common envelope.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Client -> Server message types.
const (
	TypeJoin          = "join"
	TypeLeave         = "leave"
	TypeSkip          = "skip"
	TypeUndoSkip      = "undo_skip"
	TypeMessage       = "message"
	TypeTyping        = "typing"
	TypeReport        = "report"
	TypeRevealRequest = "reveal_request"
	TypeRevealDecline = "reveal_decline"
	TypeSetProfile    = "set_profile"
	TypePing          = "ping"
)

// Server -> Client message types.
const (
	TypeSessionCreated  = "session_created"
	TypeMatched         = "matched"
	TypeWaiting         = "waiting"
	TypePartnerLeft     = "partner_left"
	TypeSkipped         = "skipped"
	TypeAlreadyChatting = "already_chatting"
	TypeAlreadyWaiting  = "already_waiting"
	TypeNotInChat       = "not_in_chat"
	TypeUndoExpired     = "undo_expired"
	TypePartnerBusy     = "partner_busy"
	TypeRevealRequested = "reveal_requested"
	TypeRevealAccepted  = "reveal_accepted"
	TypeRevealDeclined  = "reveal_declined"
	TypeRevealPending   = "reveal_pending"
	TypeReportReceived  = "report_received"
	TypeReportDuplicate = "report_duplicate"
	TypeRateLimited     = "rate_limited"
	TypeBanned          = "banned"
	TypeError           = "error"
	TypePong            = "pong"
)

// Envelope holds the message type and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON captures the full raw bytes and extracts only the "type"
// field so the rest of the payload can be decoded later into the
// appropriate concrete struct.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// ---------------------------------------------------------------------------
// Client -> Server message structs
// ---------------------------------------------------------------------------

// JoinMsg enters the waiting queue. Filter fields are optional; empty
// values keep whatever the session already has.
type JoinMsg struct {
	Type       string `json:"type"`
	Gender     string `json:"gender,omitempty"`
	Preference string `json:"preference,omitempty"`
	Language   string `json:"language,omitempty"`
}

// LeaveMsg leaves the queue or the current chat.
type LeaveMsg struct {
	Type string `json:"type"`
}

// SkipMsg abandons the current partner and rejoins the queue.
type SkipMsg struct {
	Type string `json:"type"`
}

// UndoSkipMsg tries to restore the most recently skipped pairing.
type UndoSkipMsg struct {
	Type string `json:"type"`
}

// ChatMsg is a text or media message for the current partner.
type ChatMsg struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	MediaID string `json:"media_id,omitempty"`
	Caption string `json:"caption,omitempty"`
}

// TypingMsg signals the client's typing state.
type TypingMsg struct {
	Type     string `json:"type"`
	IsTyping bool   `json:"is_typing"`
}

// ReportMsg reports the current partner.
type ReportMsg struct {
	Type string `json:"type"`
}

// RevealRequestMsg asks to exchange identities with the partner.
type RevealRequestMsg struct {
	Type string `json:"type"`
}

// RevealDeclineMsg declines a pending identity exchange.
type RevealDeclineMsg struct {
	Type string `json:"type"`
}

// SetProfileMsg updates the session's settings without joining the queue.
type SetProfileMsg struct {
	Type       string `json:"type"`
	Gender     string `json:"gender,omitempty"`
	Preference string `json:"preference,omitempty"`
	Language   string `json:"language,omitempty"`
	Age        int    `json:"age,omitempty"`
	ShowTyping *bool  `json:"show_typing,omitempty"`
}

// PingMsg is a client keepalive.
type PingMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Server -> Client message structs
// ---------------------------------------------------------------------------

// SessionCreatedMsg confirms a new connection and carries its user ID.
type SessionCreatedMsg struct {
	UserID string `json:"user_id"`
}

// ServerChatMsg relays a partner's message.
type ServerChatMsg struct {
	Text    string `json:"text,omitempty"`
	MediaID string `json:"media_id,omitempty"`
	Caption string `json:"caption,omitempty"`
	Ts      int64  `json:"ts"`
}

// ServerTypingMsg relays the partner's typing indicator.
type ServerTypingMsg struct {
	IsTyping bool `json:"is_typing"`
}

// RevealAcceptedMsg carries the partner's identity after mutual consent.
type RevealAcceptedMsg struct {
	PartnerID string `json:"partner_id"`
}

// RateLimitedMsg tells the client it is being throttled.
type RateLimitedMsg struct {
	RetryAfter int `json:"retry_after"`
}

// BannedMsg tells the client it cannot join while a ban is active.
type BannedMsg struct {
	Until int64 `json:"until"`
}

// ErrorMsg communicates an error condition.
type ErrorMsg struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ParseClientMessage parses raw WebSocket bytes into a typed client
// message. It returns the type string, the decoded struct, and any error.
// Unknown and server-only types are rejected.
func ParseClientMessage(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: parse message: %w", err)
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeJoin:
		var m JoinMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeLeave:
		var m LeaveMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeSkip:
		var m SkipMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeUndoSkip:
		var m UndoSkipMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeMessage:
		var m ChatMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeTyping:
		var m TypingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeReport:
		var m ReportMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeRevealRequest:
		var m RevealRequestMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeRevealDecline:
		var m RevealDeclineMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeSetProfile:
		var m SetProfileMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypePing:
		var m PingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown client message type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// NewServerMessage creates the JSON bytes for a server message. The
// msgType is injected into the payload under the "type" key.
func NewServerMessage(msgType string, payload interface{}) ([]byte, error) {
	if payload == nil {
		return json.Marshal(map[string]string{"type": msgType})
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal payload: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("protocol: payload is not an object: %w", err)
	}
	m["type"] = msgType

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal message: %w", err)
	}
	return out, nil
}
