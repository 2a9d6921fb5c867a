package mapper

import (
	"encoding/json"

	"algo-collab-be/internal/entity"
	"algo-collab-be/internal/model"

	"gorm.io/datatypes"
)

type SnapshotMapper struct{}

func NewSnapshotMapper() *SnapshotMapper {
	return &SnapshotMapper{}
}

func (m *SnapshotMapper) ToEntity(s *model.DocumentSnapshot) *entity.DocumentSnapshot {
	if s == nil {
		return nil
	}
	var vv map[string]uint64
	if len(s.VersionVector) > 0 {
		_ = json.Unmarshal(s.VersionVector, &vv)
	}
	return &entity.DocumentSnapshot{
		ProjectId:     s.ProjectId,
		FilePath:      s.FilePath,
		Content:       s.Content,
		VersionVector: vv,
		UpdatedAt:     s.UpdatedAt,
	}
}

func (m *SnapshotMapper) ToModel(s *entity.DocumentSnapshot) *model.DocumentSnapshot {
	if s == nil {
		return nil
	}
	var vv datatypes.JSON
	if len(s.VersionVector) > 0 {
		raw, _ := json.Marshal(s.VersionVector)
		vv = datatypes.JSON(raw)
	}
	return &model.DocumentSnapshot{
		ProjectId:     s.ProjectId,
		FilePath:      s.FilePath,
		Content:       s.Content,
		VersionVector: vv,
		UpdatedAt:     s.UpdatedAt,
	}
}
