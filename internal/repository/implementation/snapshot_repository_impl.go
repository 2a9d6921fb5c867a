package implementation

import (
	"context"
	"errors"

	"algo-collab-be/internal/entity"
	"algo-collab-be/internal/mapper"
	"algo-collab-be/internal/model"
	"algo-collab-be/internal/repository/contract"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SnapshotRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.SnapshotMapper
}

func NewSnapshotRepository(db *gorm.DB) contract.SnapshotRepository {
	return &SnapshotRepositoryImpl{
		db:     db,
		mapper: mapper.NewSnapshotMapper(),
	}
}

func (r *SnapshotRepositoryImpl) Upsert(ctx context.Context, snapshot *entity.DocumentSnapshot) error {
	m := r.mapper.ToModel(snapshot)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}, {Name: "file_path"}},
			DoUpdates: clause.AssignmentColumns([]string{"content", "version_vector", "updated_at"}),
		}).
		Create(m).Error
}

func (r *SnapshotRepositoryImpl) Find(ctx context.Context, projectID uuid.UUID, filePath string) (*entity.DocumentSnapshot, error) {
	var m model.DocumentSnapshot
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND file_path = ?", projectID, filePath).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}
