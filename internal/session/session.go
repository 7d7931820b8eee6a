// Package session manages per-user session state for the pairing engine.
// Sessions are created lazily on first interaction, mutated in place, and
// kept for the lifetime of the process. All live pairing state is owned by
// the engine; this package only tracks what the user has told us about
// themselves and where they are in the interaction flow.
package session

import "time"

// Session states. A user moves idle -> searching -> chatting and back;
// the selecting/confirming states exist for multi-step UI flows where the
// transport needs to know which answer it is waiting for.
const (
	StateIdle             = "idle"
	StateSelectingGender  = "selecting_gender"
	StateSelectingPref    = "selecting_preference"
	StateSelectingLang    = "selecting_language"
	StateSearching        = "searching"
	StateChatting         = "chatting"
	StateConfirmingReport = "confirming_report"
	StateSettingAge       = "setting_age"
)

// Session holds one user's state and declared attributes. Gender,
// Preference, and Language are empty until the user declares them; empty
// means "no filter" for matching purposes.
type Session struct {
	UserID     string
	State      string
	Gender     string
	Preference string
	Language   string
	Age        int
	ShowTyping bool // relay partner typing indicators to this user

	ChatStartedAt time.Time // set while chatting, zero otherwise
	CreatedAt     time.Time
	LastActive    time.Time
}

// InChat reports whether the session is currently in the chatting state.
func (s *Session) InChat() bool {
	return s.State == StateChatting
}
