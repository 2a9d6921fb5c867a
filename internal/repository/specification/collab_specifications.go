package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByProjectID struct {
	ProjectID uuid.UUID
}

func (s ByProjectID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("project_id = ?", s.ProjectID)
}

type ByFilePath struct {
	FilePath string
}

func (s ByFilePath) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("file_path = ?", s.FilePath)
}

// ActiveSessions keeps only sessions that have not ended.
type ActiveSessions struct{}

func (s ActiveSessions) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("ended_at IS NULL")
}

// RootsOnly keeps only thread roots (comments without a parent).
type RootsOnly struct{}

func (s RootsOnly) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("parent_id IS NULL")
}

type ByParentID struct {
	ParentID uuid.UUID
}

func (s ByParentID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("parent_id = ?", s.ParentID)
}

// ThreadOf matches the root itself and all of its replies.
type ThreadOf struct {
	RootID uuid.UUID
}

func (s ThreadOf) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id = ? OR parent_id = ?", s.RootID, s.RootID)
}
