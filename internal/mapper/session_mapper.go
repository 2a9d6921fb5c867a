package mapper

import (
	"algo-collab-be/internal/entity"
	"algo-collab-be/internal/model"
)

type SessionMapper struct{}

func NewSessionMapper() *SessionMapper {
	return &SessionMapper{}
}

func (m *SessionMapper) ToEntity(s *model.CollabSession) *entity.Session {
	if s == nil {
		return nil
	}
	return &entity.Session{
		Id:           s.Id,
		ProjectId:    s.ProjectId,
		SessionType:  entity.SessionType(s.SessionType),
		SessionName:  s.SessionName,
		CreatedBy:    s.CreatedBy,
		StartedAt:    s.StartedAt,
		EndedAt:      s.EndedAt,
		RecordingUrl: s.RecordingUrl,
	}
}

func (m *SessionMapper) ToModel(s *entity.Session) *model.CollabSession {
	if s == nil {
		return nil
	}
	return &model.CollabSession{
		Id:           s.Id,
		ProjectId:    s.ProjectId,
		SessionType:  string(s.SessionType),
		SessionName:  s.SessionName,
		CreatedBy:    s.CreatedBy,
		StartedAt:    s.StartedAt,
		EndedAt:      s.EndedAt,
		RecordingUrl: s.RecordingUrl,
	}
}

func (m *SessionMapper) ToEntities(models []*model.CollabSession) []*entity.Session {
	out := make([]*entity.Session, 0, len(models))
	for _, s := range models {
		out = append(out, m.ToEntity(s))
	}
	return out
}
