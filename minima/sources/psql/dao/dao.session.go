package dao

import (
	"context"
	"errors"
	"time"

	"minima/minima/realtime"
	"minima/minima/sources/psql/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrForbidden covers both a missing row and a row owned by someone else so
// callers cannot probe other users' session ids.
var ErrForbidden = errors.New("session not found or forbidden")

const sessionsCollection = "chat_sessions"

type SessionDAO struct {
	DB     *gorm.DB
	events realtime.Publisher
}

func NewSessionDAO(db *gorm.DB, events realtime.Publisher) *SessionDAO {
	return &SessionDAO{DB: db, events: events}
}

func (dao *SessionDAO) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.ChatSession, error) {
	var sessions []models.ChatSession
	err := dao.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (dao *SessionDAO) Get(ctx context.Context, userID, id uuid.UUID) (*models.ChatSession, error) {
	var session models.ChatSession
	err := dao.DB.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&session).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrForbidden
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (dao *SessionDAO) Create(ctx context.Context, userID uuid.UUID, title string) (*models.ChatSession, error) {
	session := models.ChatSession{
		UserID: userID,
		Title:  title,
	}
	if err := dao.DB.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, err
	}
	if dao.events != nil {
		dao.events.Publish(sessionsCollection, realtime.EventInsert, session)
	}
	return &session, nil
}

func (dao *SessionDAO) Update(ctx context.Context, userID, id uuid.UUID, fields map[string]any) (*models.ChatSession, error) {
	res := dao.DB.WithContext(ctx).
		Model(&models.ChatSession{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrForbidden
	}
	session, err := dao.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if dao.events != nil {
		dao.events.Publish(sessionsCollection, realtime.EventUpdate, *session)
	}
	return session, nil
}

func (dao *SessionDAO) Delete(ctx context.Context, userID, id uuid.UUID) error {
	session, err := dao.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	res := dao.DB.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.ChatSession{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrForbidden
	}
	if dao.events != nil {
		dao.events.Publish(sessionsCollection, realtime.EventDelete, *session)
	}
	return nil
}

// Touch bumps updated_at; called when a message lands in the session so the
// recency ordering on the client side follows activity, not just renames.
func (dao *SessionDAO) Touch(ctx context.Context, userID, id uuid.UUID) (*models.ChatSession, error) {
	return dao.Update(ctx, userID, id, map[string]any{"updated_at": time.Now().UTC()})
}
