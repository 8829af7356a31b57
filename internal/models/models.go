package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

type User struct {
	ID         uint           `gorm:"primarykey" json:"id"`
	Email      string         `gorm:"unique;not null" json:"email"`
	Password   string         `gorm:"not null" json:"-"`
	Name       string         `json:"name"`
	VideoQuota int            `gorm:"default:10" json:"video_quota"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`

	Videos []Video `gorm:"foreignKey:UserID" json:"videos,omitempty"`
}

type Video struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	UserID       uint           `gorm:"not null" json:"user_id"`
	JobID        string         `gorm:"index" json:"job_id"`
	Title        string         `gorm:"index" json:"title"`
	OriginalText string         `json:"original_text"`
	Template     string         `json:"template"`
	VideoURL     string         `json:"video_url"`
	Status       string         `gorm:"default:'processing'" json:"status"` // processing, completed, failed
	ErrorMessage string         `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
