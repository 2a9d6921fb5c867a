package mapper

import (
	"algo-collab-be/internal/entity"
	"algo-collab-be/internal/model"
)

type UserMapper struct{}

func NewUserMapper() *UserMapper {
	return &UserMapper{}
}

func (m *UserMapper) ToEntity(u *model.User) *entity.User {
	if u == nil {
		return nil
	}
	return &entity.User{
		Id:          u.Id,
		Email:       u.Email,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Role:        entity.UserRole(u.Role),
		AvatarURL:   u.AvatarURL,
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}

func (m *UserMapper) ProjectToEntity(p *model.Project) *entity.Project {
	if p == nil {
		return nil
	}
	return &entity.Project{
		Id:         p.Id,
		Name:       p.Name,
		OwnerId:    p.OwnerId,
		Visibility: entity.ProjectVisibility(p.Visibility),
		CreatedAt:  p.CreatedAt,
	}
}
