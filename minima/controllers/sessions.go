package controllers

import (
	"context"
	"errors"

	"minima/minima/sources/psql/dao"
	"minima/minima/sources/psql/models"
	"minima/minima/utils/types"

	"github.com/google/uuid"
)

var ErrInvalidRole = errors.New("role must be user or assistant")

type SessionController struct {
	sessionDAO *dao.SessionDAO
	messageDAO *dao.MessageDAO
}

func NewSessionController(sessionDAO *dao.SessionDAO, messageDAO *dao.MessageDAO) *SessionController {
	return &SessionController{sessionDAO: sessionDAO, messageDAO: messageDAO}
}

func (c *SessionController) ListSessions(ctx context.Context, userID uuid.UUID) ([]models.ChatSession, error) {
	return c.sessionDAO.ListByUser(ctx, userID)
}

func (c *SessionController) CreateSession(ctx context.Context, userID uuid.UUID, req types.CreateSessionRequest) (*models.ChatSession, error) {
	title := req.Title
	if title == "" {
		title = "New Chat"
	}
	return c.sessionDAO.Create(ctx, userID, title)
}

func (c *SessionController) UpdateSession(ctx context.Context, userID, sessionID uuid.UUID, req types.UpdateSessionRequest) (*models.ChatSession, error) {
	fields := map[string]any{}
	if req.Title != nil {
		fields["title"] = *req.Title
	}
	if len(fields) == 0 {
		return c.sessionDAO.Get(ctx, userID, sessionID)
	}
	return c.sessionDAO.Update(ctx, userID, sessionID, fields)
}

func (c *SessionController) DeleteSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	return c.sessionDAO.Delete(ctx, userID, sessionID)
}

func (c *SessionController) GetMessagesForSession(ctx context.Context, userID, sessionID uuid.UUID) ([]models.Message, error) {
	return c.messageDAO.ListBySession(ctx, userID, sessionID)
}

func (c *SessionController) CreateMessage(ctx context.Context, userID uuid.UUID, req types.CreateMessageRequest) (*models.Message, error) {
	if req.Role != "user" && req.Role != "assistant" {
		return nil, ErrInvalidRole
	}
	sessionID, err := uuid.Parse(req.ChatSessionID)
	if err != nil {
		return nil, dao.ErrForbidden
	}
	return c.messageDAO.Create(ctx, userID, sessionID, req.Role, req.Content, req.Provider)
}
