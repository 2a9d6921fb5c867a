package entity

import (
	"time"

	"github.com/google/uuid"
)

type Comment struct {
	Id         uuid.UUID
	ProjectId  uuid.UUID
	FilePath   string
	LineNumber int
	LineEnd    *int
	Content    string
	AuthorId   uuid.UUID
	ParentId   *uuid.UUID // nil for thread roots
	Mentions   []uuid.UUID
	Resolved   bool
	ResolvedBy *uuid.UUID
	ResolvedAt *time.Time
	CreatedAt  time.Time
}

func (c *Comment) IsRoot() bool {
	return c.ParentId == nil
}
