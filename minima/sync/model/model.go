// Package model holds the client-side view of the remote collections: chat
// sessions, their messages, and the identity on whose behalf the sync layer
// operates. Rows arriving from the change feed are decoded and validated here
// before any other package sees them.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// The demo principal used when no network is available. Fixed and never
// persisted remotely.
const (
	DemoUserID   = "demo-user-id"
	DemoEmail    = "demo@example.com"
	DemoPassword = "password"
	DemoName     = "Demo User"
)

// Sentinel content persisted in place of an assistant reply when the
// generation call fails; rendered like any other message.
const (
	GenerationErrorText = "Sorry, there was an error generating a response. Please try again."
	ErrorProvider       = "error"
)

var (
	ErrUnauthenticated    = errors.New("unauthenticated: operation requires an identity")
	ErrOfflineUnavailable = errors.New("offline: operation requires network")
	ErrRemoteWriteFailed  = errors.New("remote write failed")
	ErrFeedClosed         = errors.New("change feed closed")
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Identity is the authenticated (or demo) principal.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

func (i Identity) IsDemo() bool {
	return i.ID == DemoUserID
}

func DemoIdentity() Identity {
	return Identity{ID: DemoUserID, Email: DemoEmail, Name: DemoName}
}

type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Message struct {
	ID            string    `json:"id"`
	ChatSessionID string    `json:"chat_session_id"`
	UserID        string    `json:"user_id"`
	Role          Role      `json:"role"`
	Content       string    `json:"content"`
	Provider      string    `json:"provider,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Visualization is an opaque render payload attached to one message locally.
// It never travels to the remote store; reconstructing a message without one
// is always valid.
type Visualization struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Remote collection names.
const (
	SessionsCollection = "chat_sessions"
	MessagesCollection = "messages"
)

type EventKind string

const (
	EventInsert EventKind = "INSERT"
	EventUpdate EventKind = "UPDATE"
	EventDelete EventKind = "DELETE"

	// EventResync is synthesized locally after a feed reconnect: state may be
	// stale and the owner should do a full refetch.
	EventResync EventKind = "RESYNC"

	// EventClosed is terminal: the feed gave up resuming. The owner should
	// refetch and, if still interested, subscribe again.
	EventClosed EventKind = "CLOSED"
)

// ChangeEvent is one tagged row change delivered by the feed. Row is the raw
// payload; consumers decode it with the typed helpers below.
type ChangeEvent struct {
	Kind       EventKind       `json:"kind"`
	Collection string          `json:"collection"`
	Row        json.RawMessage `json:"row"`
}

// DecodeSession validates and decodes a chat_sessions row.
func (e ChangeEvent) DecodeSession() (Session, error) {
	var s Session
	if err := json.Unmarshal(e.Row, &s); err != nil {
		return Session{}, fmt.Errorf("decode session row: %w", err)
	}
	if s.ID == "" || s.UserID == "" {
		return Session{}, fmt.Errorf("session row failed validation: missing id or user_id")
	}
	return s, nil
}

// DecodeMessage validates and decodes a messages row.
func (e ChangeEvent) DecodeMessage() (Message, error) {
	var m Message
	if err := json.Unmarshal(e.Row, &m); err != nil {
		return Message{}, fmt.Errorf("decode message row: %w", err)
	}
	if m.ID == "" || m.ChatSessionID == "" {
		return Message{}, fmt.Errorf("message row failed validation: missing id or chat_session_id")
	}
	return m, nil
}
