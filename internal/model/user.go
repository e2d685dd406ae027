package model

import "time"

type User struct {
	ID                  int64     `json:"id" gorm:"primaryKey"`
	Email               string    `json:"email" gorm:"size:255;uniqueIndex;not null"`
	PasswordHash        string    `json:"-" gorm:"size:128;not null"`
	FirstName           string    `json:"first_name" gorm:"size:64"`
	LastName            string    `json:"last_name" gorm:"size:64"`
	MiddleName          string    `json:"middle_name" gorm:"size:64"`
	UserLevel           string    `json:"user_level" gorm:"size:32;default:staff;index"`
	IsActive            bool      `json:"is_active" gorm:"default:true"`
	ForcePasswordChange bool      `json:"force_password_change" gorm:"default:false"`
	AvatarURL           *string   `json:"avatar_url" gorm:"size:512"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

const (
	LevelAdmin = "admin"
	LevelStaff = "staff"
)
