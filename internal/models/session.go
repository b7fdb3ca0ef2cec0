package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a voice session.
const (
	SessionStatusPending   = "pending"
	SessionStatusActive    = "active"
	SessionStatusCompleted = "completed"
	SessionStatusFailed    = "failed"
)

// Session is one voice interaction between a user and the assistant, tied to
// a LiveKit room.
type Session struct {
	ID        uuid.UUID  `json:"id"`
	RoomName  string     `json:"room_name"`
	UserID    string     `json:"user_id"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// NewSession creates a pending session.
func NewSession(roomName, userID string) *Session {
	return &Session{
		ID:        uuid.New(),
		RoomName:  roomName,
		UserID:    userID,
		Status:    SessionStatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// Start marks the session active.
func (s *Session) Start() error {
	if s.Status != SessionStatusPending {
		return fmt.Errorf("cannot start session in %s status", s.Status)
	}
	s.Status = SessionStatusActive
	now := time.Now().UTC()
	s.StartedAt = &now
	return nil
}

// Complete marks the session completed.
func (s *Session) Complete() error {
	if s.Status != SessionStatusActive {
		return fmt.Errorf("cannot complete session in %s status", s.Status)
	}
	s.Status = SessionStatusCompleted
	now := time.Now().UTC()
	s.EndedAt = &now
	return nil
}

// Fail marks the session failed from any state.
func (s *Session) Fail() {
	s.Status = SessionStatusFailed
	now := time.Now().UTC()
	s.EndedAt = &now
}

// DurationSeconds returns the elapsed session time, or 0 if it never started.
func (s *Session) DurationSeconds() float64 {
	if s.StartedAt == nil {
		return 0
	}
	end := time.Now().UTC()
	if s.EndedAt != nil {
		end = *s.EndedAt
	}
	return end.Sub(*s.StartedAt).Seconds()
}
