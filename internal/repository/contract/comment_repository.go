package contract

import (
	"context"

	"algo-collab-be/internal/entity"
	"algo-collab-be/internal/repository/specification"

	"github.com/google/uuid"
)

type CommentRepository interface {
	Create(ctx context.Context, comment *entity.Comment) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Comment, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Comment, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// MarkResolved flips the resolved flag; flipping an already-resolved
	// thread is a no-op at the SQL level too (WHERE resolved = false).
	MarkResolved(ctx context.Context, id uuid.UUID, by uuid.UUID) error
	MarkReopened(ctx context.Context, id uuid.UUID) error
	// HideThread soft-deletes a root and all of its replies together so
	// a reply never outlives its root.
	HideThread(ctx context.Context, rootID uuid.UUID) error
}
