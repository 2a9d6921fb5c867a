package contract

import (
	"context"

	"algo-collab-be/internal/entity"

	"github.com/google/uuid"
)

// UserRepository is the identity collaborator's read-only surface. The
// collaboration core never mutates users or projects.
type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.User, error)
	ProjectExists(ctx context.Context, projectID uuid.UUID) (bool, error)
}
