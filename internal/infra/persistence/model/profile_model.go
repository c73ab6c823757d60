// Package model contains the GORM persistence models.
package model

import (
	"time"
)

// ProfileModel mirrors the 'profiles' table. The primary key is the identity
// provider's opaque user id, not a locally generated one, so a profile row
// always joins 1:1 with a provider account.
// It is an exported type so it can be used by the GORM Gen tool from other packages.
type ProfileModel struct {
	UserID      string `gorm:"type:uuid;primaryKey"`
	Email       string `gorm:"type:varchar(255);not null;index"`
	DisplayName string `gorm:"type:varchar(100)"`
	AvatarURL   string `gorm:"type:text"`
	Role        string `gorm:"type:varchar(32);not null;default:'user'"`
	Enabled     bool   `gorm:"not null;default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName explicitly sets the table name for GORM.
func (ProfileModel) TableName() string {
	return "profiles"
}
