package dto

import (
	"time"

	"github.com/google/uuid"
)

type PresenceUpdateRequest struct {
	Status       string  `json:"status" validate:"omitempty,oneof=active idle away offline"`
	CurrentFile  *string `json:"current_file"`
	CursorLine   *int    `json:"cursor_line"`
	CursorColumn *int    `json:"cursor_column"`
}

type PresenceResponse struct {
	UserId          uuid.UUID `json:"user_id"`
	SessionId       uuid.UUID `json:"session_id"`
	Status          string    `json:"status"`
	CurrentFile     string    `json:"current_file"`
	CursorLine      int       `json:"cursor_line"`
	CursorColumn    int       `json:"cursor_column"`
	LastHeartbeatAt time.Time `json:"last_heartbeat_at"`
}
