package contract

import (
	"context"

	"algo-collab-be/internal/entity"

	"github.com/google/uuid"
)

type SnapshotRepository interface {
	// Upsert writes the snapshot keyed by (project_id, file_path).
	Upsert(ctx context.Context, snapshot *entity.DocumentSnapshot) error
	Find(ctx context.Context, projectID uuid.UUID, filePath string) (*entity.DocumentSnapshot, error)
}
