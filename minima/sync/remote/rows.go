package remote

import (
	"context"
	"fmt"

	"minima/minima/sync/model"
)

// RowStore is the row-level CRUD surface of the remote store, scoped to the
// authenticated identity by the server. The session store is its only
// consumer.
type RowStore interface {
	SelectSessions(ctx context.Context) ([]model.Session, error)
	InsertSession(ctx context.Context, title string) (model.Session, error)
	UpdateSession(ctx context.Context, id string, fields map[string]any) (model.Session, error)
	DeleteSession(ctx context.Context, id string) error
	SelectMessages(ctx context.Context, sessionID string) ([]model.Message, error)
	InsertMessage(ctx context.Context, m model.Message) (model.Message, error)
}

func (c *Client) SelectSessions(ctx context.Context) ([]model.Session, error) {
	var sessions []model.Session
	if err := c.do(ctx, "GET", "/sessions/", nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (c *Client) InsertSession(ctx context.Context, title string) (model.Session, error) {
	var session model.Session
	body := map[string]string{"title": title}
	if err := c.do(ctx, "POST", "/sessions/", body, &session); err != nil {
		return model.Session{}, err
	}
	return session, nil
}

func (c *Client) UpdateSession(ctx context.Context, id string, fields map[string]any) (model.Session, error) {
	var session model.Session
	if err := c.do(ctx, "PATCH", "/sessions/"+id, fields, &session); err != nil {
		return model.Session{}, err
	}
	return session, nil
}

func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.do(ctx, "DELETE", "/sessions/"+id, nil, nil)
}

func (c *Client) SelectMessages(ctx context.Context, sessionID string) ([]model.Message, error) {
	var messages []model.Message
	path := fmt.Sprintf("/sessions/%s/messages", sessionID)
	if err := c.do(ctx, "GET", path, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (c *Client) InsertMessage(ctx context.Context, m model.Message) (model.Message, error) {
	var out model.Message
	body := map[string]string{
		"chat_session_id": m.ChatSessionID,
		"role":            string(m.Role),
		"content":         m.Content,
		"provider":        m.Provider,
	}
	if err := c.do(ctx, "POST", "/sessions/messages", body, &out); err != nil {
		return model.Message{}, err
	}
	return out, nil
}
