package entity

import (
	"time"

	"github.com/google/uuid"
)

type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// User is the identity collaborator's view of a participant. The core
// only reads it to attribute authorship and display names.
type User struct {
	Id          uuid.UUID
	Email       string
	Username    string
	DisplayName string
	Role        UserRole
	AvatarURL   *string
	CreatedAt   time.Time
	LastLoginAt *time.Time
}

type ProjectVisibility string

const (
	ProjectPrivate ProjectVisibility = "private"
	ProjectPublic  ProjectVisibility = "public"
)

// Project is the minimal read-only projection the collaboration core
// needs: existence and ownership, nothing more.
type Project struct {
	Id         uuid.UUID
	Name       string
	OwnerId    uuid.UUID
	Visibility ProjectVisibility
	CreatedAt  time.Time
}
