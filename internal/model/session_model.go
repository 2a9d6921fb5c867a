package model

import (
	"time"

	"github.com/google/uuid"
)

type CollabSession struct {
	Id           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProjectId    uuid.UUID `gorm:"type:uuid;not null;index"`
	SessionType  string    `gorm:"type:varchar(50);not null"`
	SessionName  string    `gorm:"type:varchar(255);not null"`
	CreatedBy    uuid.UUID `gorm:"type:uuid;not null;index"`
	StartedAt    time.Time `gorm:"not null;autoCreateTime"`
	EndedAt      *time.Time
	RecordingUrl *string `gorm:"type:text"`
}

func (CollabSession) TableName() string {
	return "collab_sessions"
}
