package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateSessionRequest struct {
	ProjectId   uuid.UUID `json:"project_id" validate:"required"`
	SessionType string    `json:"session_type" validate:"required,oneof=pair_programming review broadcast"`
	SessionName string    `json:"session_name" validate:"required,max=200"`
}

type CreateSessionResponse struct {
	Id        uuid.UUID `json:"id"`
	StartedAt time.Time `json:"started_at"`
}

type SessionResponse struct {
	Id           uuid.UUID  `json:"id"`
	ProjectId    uuid.UUID  `json:"project_id"`
	SessionType  string     `json:"session_type"`
	SessionName  string     `json:"session_name"`
	CreatedBy    uuid.UUID  `json:"created_by"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at"`
	RecordingUrl *string    `json:"recording_url"`
}

type JoinSessionResponse struct {
	SessionId uuid.UUID `json:"session_id"`
	ProjectId uuid.UUID `json:"project_id"`
	JoinedAt  time.Time `json:"joined_at"`
}
