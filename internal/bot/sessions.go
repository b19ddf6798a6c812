package bot

import (
	"sync"
	"time"
)

// sessionTTL bounds how long an owner's "awaiting chat id" flag survives, so
// abandoned prompts don't accumulate over the life of the process.
const sessionTTL = 5 * time.Minute

// SessionStore tracks which owners are mid-way through supplying a chat id
// after the allowed-chat command. A second prompt for the same owner
// overwrites the first (last write wins).
type SessionStore struct {
	mu       sync.RWMutex
	awaiting map[int64]time.Time
	now      func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		awaiting: make(map[int64]time.Time),
		now:      time.Now,
	}
}

// SetAwaitingChatID marks the user as expected to send a chat id next.
func (s *SessionStore) SetAwaitingChatID(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline := s.now().Add(sessionTTL)
	for id, expires := range s.awaiting {
		if s.now().After(expires) {
			delete(s.awaiting, id)
		}
	}
	s.awaiting[userID] = deadline
}

// TakeAwaitingChatID reports whether the user's next message should be
// treated as a chat id, clearing the flag either way. The flag is consumed
// by exactly one message regardless of that message's validity.
func (s *SessionStore) TakeAwaitingChatID(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	expires, ok := s.awaiting[userID]
	if !ok {
		return false
	}
	delete(s.awaiting, userID)
	return !s.now().After(expires)
}
