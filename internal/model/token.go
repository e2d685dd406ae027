package model

import "time"

type PasswordResetToken struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	UserID    int64     `json:"user_id" gorm:"index;not null"`
	Token     string    `json:"-" gorm:"size:64;index;not null"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used" gorm:"default:false;index"`
	CreatedAt time.Time `json:"created_at"`
}
