package domain

import (
	"sync"
	"time"
)

// Session holds the per-connection state the server tracks for a client:
// its identity and the single room it is currently joined to. A connection
// is in at most one room; joining another room implies leaving the first.
type Session struct {
	ID            string
	User          UserInfo
	CurrentRoomID string
	CreatedAt     time.Time
	LastActiveAt  time.Time
	mu            sync.RWMutex
}

func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

func (s *Session) SetUser(user UserInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.User = user
	s.LastActiveAt = time.Now()
}

func (s *Session) UserInfo() UserInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.User
}

func (s *Session) JoinRoom(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CurrentRoomID = roomID
	s.LastActiveAt = time.Now()
}

func (s *Session) LeaveRoom() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CurrentRoomID = ""
	s.LastActiveAt = time.Now()
}

func (s *Session) CurrentRoom() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.CurrentRoomID
}

func (s *Session) IsInRoom() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.CurrentRoomID != ""
}

func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActiveAt = time.Now()
}
