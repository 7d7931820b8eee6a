package session

import (
	"sync"
	"time"
)

// Store is an in-memory session registry keyed by user ID. It is
// goroutine-safe; the engine additionally serializes all state-changing
// operations, so callers never observe a session mid-transition.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// SetNow overrides the store's time source. Tests use this together with
// the engine's clock so that timestamps are deterministic.
func (s *Store) SetNow(now func() time.Time) {
	s.now = now
}

// Get returns the session for userID, creating an idle one on first use.
func (s *Store) Get(userID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		now := s.now()
		sess = &Session{
			UserID:     userID,
			State:      StateIdle,
			ShowTyping: true,
			CreatedAt:  now,
			LastActive: now,
		}
		s.sessions[userID] = sess
	}
	return sess
}

// Lookup returns the session for userID without creating one.
func (s *Store) Lookup(userID string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	return sess, ok
}

// SetState transitions the user's session to the given state and updates
// the activity timestamp.
func (s *Store) SetState(userID, state string) {
	sess := s.Get(userID)
	s.mu.Lock()
	sess.State = state
	sess.LastActive = s.now()
	if state != StateChatting {
		sess.ChatStartedAt = time.Time{}
	}
	s.mu.Unlock()
}

// StartChat marks the session as chatting and stamps the chat start time.
func (s *Store) StartChat(userID string, startedAt time.Time) {
	sess := s.Get(userID)
	s.mu.Lock()
	sess.State = StateChatting
	sess.ChatStartedAt = startedAt
	sess.LastActive = s.now()
	s.mu.Unlock()
}

// SetProfile records the user's declared attributes. Empty strings leave
// the corresponding attribute unchanged so partial updates are possible.
func (s *Store) SetProfile(userID, gender, preference, language string) {
	sess := s.Get(userID)
	s.mu.Lock()
	if gender != "" {
		sess.Gender = gender
	}
	if preference != "" {
		sess.Preference = preference
	}
	if language != "" {
		sess.Language = language
	}
	sess.LastActive = s.now()
	s.mu.Unlock()
}

// SetAge records the user's declared age.
func (s *Store) SetAge(userID string, age int) {
	sess := s.Get(userID)
	s.mu.Lock()
	sess.Age = age
	sess.LastActive = s.now()
	s.mu.Unlock()
}

// SetShowTyping records whether the user wants partner typing indicators.
func (s *Store) SetShowTyping(userID string, show bool) {
	sess := s.Get(userID)
	s.mu.Lock()
	sess.ShowTyping = show
	s.mu.Unlock()
}

// Count returns the number of tracked sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
