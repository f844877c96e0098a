package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Message struct {
	ID            uuid.UUID   `json:"id" gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	ChatSessionID uuid.UUID   `json:"chat_session_id" gorm:"type:uuid;not null;index"`
	ChatSession   ChatSession `json:"-" gorm:"foreignKey:ChatSessionID;references:ID;constraint:OnDelete:CASCADE"`
	UserID        uuid.UUID   `json:"user_id" gorm:"type:uuid;not null"`
	Role          string      `json:"role" gorm:"type:varchar(50);not null"`
	Content       string      `json:"content" gorm:"type:text;not null"`
	Provider      string      `json:"provider,omitempty" gorm:"type:varchar(50)"`
	CreatedAt     time.Time   `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Message) BeforeCreate(tx *gorm.DB) (err error) {
	return tx.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error
}
