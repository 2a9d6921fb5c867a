package entity

import (
	"time"

	"github.com/google/uuid"
)

type PresenceStatus string

const (
	PresenceActive  PresenceStatus = "active"
	PresenceIdle    PresenceStatus = "idle"
	PresenceAway    PresenceStatus = "away"
	PresenceOffline PresenceStatus = "offline"
)

// Presence is ephemeral per-user-per-session liveness and cursor state.
// It is never persisted; staleness is a function of LastHeartbeatAt.
type Presence struct {
	UserId          uuid.UUID
	SessionId       uuid.UUID
	ProjectId       uuid.UUID
	Status          PresenceStatus
	CurrentFile     string
	CursorLine      int
	CursorColumn    int
	LastHeartbeatAt time.Time
}

// Stale reports whether the record is older than the heartbeat timeout
// at the given instant. Readers must treat stale records as absent even
// if the sweep has not physically removed them yet.
func (p *Presence) Stale(now time.Time, timeout time.Duration) bool {
	return now.Sub(p.LastHeartbeatAt) > timeout
}
