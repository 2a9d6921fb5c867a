package implementation

import (
	"context"
	"errors"
	"time"

	"algo-collab-be/internal/entity"
	"algo-collab-be/internal/mapper"
	"algo-collab-be/internal/model"
	"algo-collab-be/internal/repository/contract"
	"algo-collab-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CommentRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.CommentMapper
}

func NewCommentRepository(db *gorm.DB) contract.CommentRepository {
	return &CommentRepositoryImpl{
		db:     db,
		mapper: mapper.NewCommentMapper(),
	}
}

func (r *CommentRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *CommentRepositoryImpl) Create(ctx context.Context, comment *entity.Comment) error {
	m := r.mapper.ToModel(comment)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*comment = *r.mapper.ToEntity(m)
	return nil
}

func (r *CommentRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Comment, error) {
	var m model.CodeComment
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.CodeComment{}), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *CommentRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Comment, error) {
	var models []*model.CodeComment
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.CodeComment{}), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *CommentRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.CodeComment{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *CommentRepositoryImpl) MarkResolved(ctx context.Context, id uuid.UUID, by uuid.UUID) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&model.CodeComment{}).
		Where("id = ? AND resolved = false", id).
		Updates(map[string]interface{}{
			"resolved":    true,
			"resolved_by": by,
			"resolved_at": now,
		}).Error
}

func (r *CommentRepositoryImpl) MarkReopened(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&model.CodeComment{}).
		Where("id = ? AND resolved = true", id).
		Updates(map[string]interface{}{
			"resolved":    false,
			"resolved_by": nil,
			"resolved_at": nil,
		}).Error
}

func (r *CommentRepositoryImpl) HideThread(ctx context.Context, rootID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ? OR parent_id = ?", rootID, rootID).
		Delete(&model.CodeComment{}).Error
}
