package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User and Project tables are owned by the platform's identity service.
// The collaboration core maps them read-only.

type User struct {
	Id          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Email       string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	Username    string    `gorm:"type:varchar(100);uniqueIndex;not null"`
	DisplayName string    `gorm:"type:varchar(255);not null"`
	Role        string    `gorm:"type:varchar(50);not null;default:'user'"`
	AvatarURL   *string   `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	LastLoginAt *time.Time
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

func (User) TableName() string {
	return "users"
}

type Project struct {
	Id         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name       string    `gorm:"type:varchar(255);not null"`
	OwnerId    uuid.UUID `gorm:"type:uuid;not null;index"`
	Visibility string    `gorm:"type:varchar(50);not null;default:'private'"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	DeletedAt  gorm.DeletedAt `gorm:"index"`
}

func (Project) TableName() string {
	return "projects"
}
