package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateCommentRequest struct {
	ProjectId  uuid.UUID   `json:"project_id" validate:"required"`
	FilePath   string      `json:"file_path" validate:"required"`
	LineNumber int         `json:"line_number" validate:"required,min=1"`
	LineEnd    *int        `json:"line_end" validate:"omitempty,gtefield=LineNumber"`
	Content    string      `json:"content" validate:"required"`
	Mentions   []uuid.UUID `json:"mentions"`
}

type ReplyCommentRequest struct {
	RootId   uuid.UUID
	Content  string      `json:"content" validate:"required"`
	Mentions []uuid.UUID `json:"mentions"`
}

type CommentResponse struct {
	Id         uuid.UUID   `json:"id"`
	ProjectId  uuid.UUID   `json:"project_id"`
	FilePath   string      `json:"file_path"`
	LineNumber int         `json:"line_number"`
	LineEnd    *int        `json:"line_end"`
	Content    string      `json:"content"`
	AuthorId   uuid.UUID   `json:"author_id"`
	ParentId   *uuid.UUID  `json:"parent_id"`
	Mentions   []uuid.UUID `json:"mentions"`
	Resolved   bool        `json:"resolved"`
	ResolvedBy *uuid.UUID  `json:"resolved_by"`
	ResolvedAt *time.Time  `json:"resolved_at"`
	CreatedAt  time.Time   `json:"created_at"`
}

// ThreadResponse is a root comment with its replies in creation order.
type ThreadResponse struct {
	Root    *CommentResponse   `json:"root"`
	Replies []*CommentResponse `json:"replies"`
}
