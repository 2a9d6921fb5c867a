package mapper

import (
	"encoding/json"

	"algo-collab-be/internal/entity"
	"algo-collab-be/internal/model"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type CommentMapper struct{}

func NewCommentMapper() *CommentMapper {
	return &CommentMapper{}
}

func (m *CommentMapper) ToEntity(c *model.CodeComment) *entity.Comment {
	if c == nil {
		return nil
	}
	var mentions []uuid.UUID
	if len(c.Mentions) > 0 {
		// Mentions are opaque identity references; a malformed blob is
		// treated as no mentions rather than a read failure.
		_ = json.Unmarshal(c.Mentions, &mentions)
	}
	return &entity.Comment{
		Id:         c.Id,
		ProjectId:  c.ProjectId,
		FilePath:   c.FilePath,
		LineNumber: c.LineNumber,
		LineEnd:    c.LineEnd,
		Content:    c.Content,
		AuthorId:   c.AuthorId,
		ParentId:   c.ParentId,
		Mentions:   mentions,
		Resolved:   c.Resolved,
		ResolvedBy: c.ResolvedBy,
		ResolvedAt: c.ResolvedAt,
		CreatedAt:  c.CreatedAt,
	}
}

func (m *CommentMapper) ToModel(c *entity.Comment) *model.CodeComment {
	if c == nil {
		return nil
	}
	var mentions datatypes.JSON
	if len(c.Mentions) > 0 {
		raw, _ := json.Marshal(c.Mentions)
		mentions = datatypes.JSON(raw)
	}
	return &model.CodeComment{
		Id:         c.Id,
		ProjectId:  c.ProjectId,
		FilePath:   c.FilePath,
		LineNumber: c.LineNumber,
		LineEnd:    c.LineEnd,
		Content:    c.Content,
		AuthorId:   c.AuthorId,
		ParentId:   c.ParentId,
		Mentions:   mentions,
		Resolved:   c.Resolved,
		ResolvedBy: c.ResolvedBy,
		ResolvedAt: c.ResolvedAt,
		CreatedAt:  c.CreatedAt,
	}
}

func (m *CommentMapper) ToEntities(models []*model.CodeComment) []*entity.Comment {
	out := make([]*entity.Comment, 0, len(models))
	for _, c := range models {
		out = append(out, m.ToEntity(c))
	}
	return out
}
