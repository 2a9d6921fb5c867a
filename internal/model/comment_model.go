package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CodeComment struct {
	Id         uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProjectId  uuid.UUID  `gorm:"type:uuid;not null;index:idx_comment_file"`
	FilePath   string     `gorm:"type:text;not null;index:idx_comment_file"`
	LineNumber int        `gorm:"not null"`
	LineEnd    *int
	Content    string     `gorm:"type:text;not null"`
	AuthorId   uuid.UUID  `gorm:"type:uuid;not null;index"`
	ParentId   *uuid.UUID `gorm:"type:uuid;index"` // NULL for thread roots
	Mentions   datatypes.JSON
	Resolved   bool `gorm:"not null;default:false"`
	ResolvedBy *uuid.UUID `gorm:"type:uuid"`
	ResolvedAt *time.Time
	CreatedAt  time.Time      `gorm:"autoCreateTime"`
	DeletedAt  gorm.DeletedAt `gorm:"index"` // soft delete only, audit history survives
}

func (CodeComment) TableName() string {
	return "code_comments"
}
