package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type DocumentSnapshot struct {
	Id            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProjectId     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_snapshot_doc"`
	FilePath      string    `gorm:"type:text;not null;uniqueIndex:idx_snapshot_doc"`
	Content       string    `gorm:"type:text;not null"`
	VersionVector datatypes.JSON
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (DocumentSnapshot) TableName() string {
	return "document_snapshots"
}
