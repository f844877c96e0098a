package dao

import (
	"context"

	"minima/minima/realtime"
	"minima/minima/sources/psql/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const messagesCollection = "messages"

type MessageDAO struct {
	DB       *gorm.DB
	sessions *SessionDAO
	events   realtime.Publisher
}

func NewMessageDAO(db *gorm.DB, sessions *SessionDAO, events realtime.Publisher) *MessageDAO {
	return &MessageDAO{DB: db, sessions: sessions, events: events}
}

func (dao *MessageDAO) ListBySession(ctx context.Context, userID, sessionID uuid.UUID) ([]models.Message, error) {
	if _, err := dao.sessions.Get(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	var messages []models.Message
	err := dao.DB.WithContext(ctx).
		Where("chat_session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// Create appends one message and bumps the owning session's updated_at, so
// every append is followed by an UPDATE event on chat_sessions.
func (dao *MessageDAO) Create(ctx context.Context, userID, sessionID uuid.UUID, role, content, provider string) (*models.Message, error) {
	if _, err := dao.sessions.Get(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	msg := models.Message{
		ChatSessionID: sessionID,
		UserID:        userID,
		Role:          role,
		Content:       content,
		Provider:      provider,
	}
	if err := dao.DB.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, err
	}
	if dao.events != nil {
		dao.events.Publish(messagesCollection, realtime.EventInsert, msg)
	}
	if _, err := dao.sessions.Touch(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Owns reports whether the session belongs to the user. The realtime route
// uses it to authorize message-feed filters.
func (dao *MessageDAO) Owns(ctx context.Context, userID, sessionID uuid.UUID) bool {
	_, err := dao.sessions.Get(ctx, userID, sessionID)
	return err == nil
}
