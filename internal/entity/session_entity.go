package entity

import (
	"time"

	"github.com/google/uuid"
)

type SessionType string

const (
	SessionTypePairProgramming SessionType = "pair_programming"
	SessionTypeReview          SessionType = "review"
	SessionTypeBroadcast       SessionType = "broadcast"
)

func (t SessionType) Valid() bool {
	switch t {
	case SessionTypePairProgramming, SessionTypeReview, SessionTypeBroadcast:
		return true
	}
	return false
}

type Session struct {
	Id           uuid.UUID
	ProjectId    uuid.UUID
	SessionType  SessionType
	SessionName  string
	CreatedBy    uuid.UUID
	StartedAt    time.Time
	EndedAt      *time.Time
	RecordingUrl *string
}

// Active reports whether the session still accepts joins and edits.
func (s *Session) Active() bool {
	return s.EndedAt == nil
}
