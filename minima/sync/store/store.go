// Package store owns the in-memory session list and the active session's
// message buffer, reconciling the authoritative remote collections with
// locally-issued writes. All mutation flows through its API; message dispatch
// and the view layer never touch the collections directly.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"minima/minima/sync/auth"
	"minima/minima/sync/cache"
	"minima/minima/sync/feed"
	"minima/minima/sync/model"
	"minima/minima/sync/remote"
	"minima/minima/utils/logging"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Subscription is the slice of the feed API the store needs to hold on to.
type Subscription interface {
	Unsubscribe()
}

// Feeder opens filtered collection watches; *feed.Feed is adapted to this in
// the client composition, tests inject fakes.
type Feeder interface {
	Subscribe(ctx context.Context, collection string, filter feed.Filter, onEvent func(model.ChangeEvent)) (Subscription, error)
}

type Store struct {
	auth   *auth.State
	rows   remote.RowStore
	feeder Feeder
	cache  *cache.Cache

	mu       sync.Mutex
	sessions []model.Session
	activeID string
	messages []model.Message
	viz      map[string]model.Visualization
	lastErr  error

	// Messages appended while in demo mode, keyed by session id. The demo
	// identity never writes remotely, so this map is its whole message store.
	demoMessages map[string][]model.Message

	runCtx     context.Context
	boundUser  string
	sessionSub Subscription
	messageSub Subscription
}

func New(a *auth.State, rows remote.RowStore, feeder Feeder, c *cache.Cache) *Store {
	return &Store{
		auth:         a,
		rows:         rows,
		feeder:       feeder,
		cache:        c,
		viz:          make(map[string]model.Visualization),
		demoMessages: make(map[string][]model.Message),
		runCtx:       context.Background(),
	}
}

// Run loads the cold-start hint and ties the store to identity transitions:
// the sessions feed is established once per authenticated identity and torn
// down on sign-out. Call once, before or after auth.Start.
func (s *Store) Run(ctx context.Context) {
	s.mu.Lock()
	s.runCtx = ctx
	if s.cache != nil && len(s.sessions) == 0 {
		if cached, err := s.cache.LoadSessions(); err == nil && len(cached) > 0 {
			s.sessions = sortSessions(cached)
		}
	}
	s.mu.Unlock()

	s.auth.OnChange(func(id *model.Identity) { s.bindIdentity(id) })
	if id := s.auth.CurrentIdentity(); id != nil {
		s.bindIdentity(id)
	}
}

func (s *Store) bindIdentity(id *model.Identity) {
	s.mu.Lock()
	if id != nil && s.boundUser == id.ID {
		s.mu.Unlock()
		return
	}
	sessionSub, messageSub := s.sessionSub, s.messageSub
	s.sessionSub, s.messageSub = nil, nil
	if id == nil {
		s.boundUser = ""
		s.sessions = nil
		s.activeID = ""
		s.messages = nil
		s.viz = make(map[string]model.Visualization)
		s.demoMessages = make(map[string][]model.Message)
		s.mu.Unlock()
		unsubscribe(sessionSub, messageSub)
		return
	}
	s.boundUser = id.ID
	ctx := s.runCtx
	s.mu.Unlock()
	unsubscribe(sessionSub, messageSub)

	if s.localOnly() {
		return
	}
	if err := s.refreshSessions(ctx); err != nil {
		logging.AppLogger.Warn("initial session list failed", zap.Error(err))
	}
	sub, err := s.feeder.Subscribe(ctx, model.SessionsCollection,
		feed.Filter{Column: "user_id", Value: id.ID}, s.onSessionEvent)
	if err != nil {
		logging.ErrorLogger.Error("sessions feed subscribe failed", zap.Error(err))
		return
	}
	s.mu.Lock()
	s.sessionSub = sub
	s.mu.Unlock()
}

func unsubscribe(subs ...Subscription) {
	for _, sub := range subs {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
}

// localOnly reports whether writes must stay in memory. Only the demo
// identity qualifies: it has no remote rows to write. A real identity that
// loses network does not get local writes faked for it, those would be
// silently discarded on the next resync.
func (s *Store) localOnly() bool {
	id := s.auth.CurrentIdentity()
	return id != nil && id.IsDemo()
}

// offlineGuard rejects a remote write while the monitor reports offline,
// recording the failure in the error slot before any dial is attempted.
func (s *Store) offlineGuard() error {
	if s.auth.IsOffline() {
		s.setLastError(model.ErrOfflineUnavailable)
		return model.ErrOfflineUnavailable
	}
	return nil
}

// onSessionEvent is the feed dispatcher for the sessions collection. Row
// events run through the pure reducer; resync signals trigger a full refetch.
func (s *Store) onSessionEvent(ev model.ChangeEvent) {
	switch ev.Kind {
	case model.EventResync, model.EventClosed:
		ctx := s.runCtx
		if err := s.refreshSessions(ctx); err != nil {
			logging.AppLogger.Warn("session resync failed", zap.Error(err))
		}
		s.mu.Lock()
		active := s.activeID
		s.mu.Unlock()
		if active != "" {
			if _, err := s.FetchMessages(ctx, active); err != nil {
				logging.AppLogger.Warn("message resync failed", zap.Error(err))
			}
		}
		return
	}

	s.mu.Lock()
	prev := s.activeID
	s.sessions = applySessions(s.sessions, ev)
	s.ensureActiveLocked()
	next := s.activeID
	s.persistLocked()
	s.mu.Unlock()

	// A remote delete of the active session moves focus to the fallback.
	// The full switch path fetches its messages and retargets the message
	// feed filter.
	if next != prev {
		if err := s.SetActiveSession(s.runCtx, next); err != nil {
			logging.AppLogger.Warn("activating fallback session failed", zap.Error(err))
		}
	}
}

// onMessageEvent appends a message-insert for the active session directly,
// skipping the full refetch; duplicates by id are ignored.
func (s *Store) onMessageEvent(ev model.ChangeEvent) {
	switch ev.Kind {
	case model.EventResync, model.EventClosed:
		s.mu.Lock()
		active := s.activeID
		s.mu.Unlock()
		if active != "" {
			if _, err := s.FetchMessages(s.runCtx, active); err != nil {
				logging.AppLogger.Warn("message resync failed", zap.Error(err))
			}
		}
		return
	case model.EventInsert:
	default:
		return
	}

	row, err := ev.DecodeMessage()
	if err != nil {
		logging.AppLogger.Warn("rejecting message row", zap.Error(err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if row.ChatSessionID != s.activeID {
		return
	}
	for _, m := range s.messages {
		if m.ID == row.ID {
			return
		}
	}
	s.messages = sortMessages(append(s.messages, row))
}

// ensureActiveLocked keeps the active id pointing at a session that exists,
// falling back to the most recent remaining one or none.
func (s *Store) ensureActiveLocked() {
	if s.activeID == "" {
		return
	}
	for _, sess := range s.sessions {
		if sess.ID == s.activeID {
			return
		}
	}
	if len(s.sessions) > 0 {
		s.activeID = s.sessions[0].ID
	} else {
		s.activeID = ""
	}
	s.messages = nil
}

func (s *Store) persistLocked() {
	if s.cache == nil {
		return
	}
	if err := s.cache.SaveSessions(s.sessions); err != nil {
		logging.AppLogger.Warn("session cache write failed", zap.Error(err))
	}
}

func (s *Store) refreshSessions(ctx context.Context) error {
	sessions, err := s.rows.SelectSessions(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.sessions = sortSessions(sessions)
	s.ensureActiveLocked()
	s.persistLocked()
	s.mu.Unlock()
	return nil
}

// Sessions returns a snapshot ordered by recency.
func (s *Store) Sessions() []model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Session, len(s.sessions))
	copy(out, s.sessions)
	return out
}

func (s *Store) ActiveSessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

func (s *Store) ActiveSession() *model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.ID == s.activeID {
			out := sess
			return &out
		}
	}
	return nil
}

// Messages returns a snapshot of the active session's buffer, oldest first.
func (s *Store) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Store) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Store) setLastError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// SetActiveSession switches the active session, replacing the message buffer
// with a fresh fetch for the new id. Passing "" clears the buffer. The
// per-session message feed is torn down on every switch.
func (s *Store) SetActiveSession(ctx context.Context, id string) error {
	s.mu.Lock()
	messageSub := s.messageSub
	s.messageSub = nil
	s.activeID = id
	s.messages = nil
	s.mu.Unlock()
	unsubscribe(messageSub)

	if id == "" {
		return nil
	}
	if _, err := s.FetchMessages(ctx, id); err != nil {
		return err
	}
	if s.localOnly() || s.feeder == nil {
		return nil
	}
	sub, err := s.feeder.Subscribe(ctx, model.MessagesCollection,
		feed.Filter{Column: "chat_session_id", Value: id}, s.onMessageEvent)
	if err != nil {
		logging.AppLogger.Warn("message feed subscribe failed", zap.Error(err))
		return nil
	}
	s.mu.Lock()
	s.messageSub = sub
	s.mu.Unlock()
	return nil
}

// CreateSession writes a new session owned by the current identity and makes
// it active. In demo mode the session exists purely in memory. A
// failed remote write leaves no local entry behind (roll back, not retry).
func (s *Store) CreateSession(ctx context.Context, title string) (string, error) {
	identity := s.auth.CurrentIdentity()
	if identity == nil {
		return "", model.ErrUnauthenticated
	}

	var session model.Session
	if s.localOnly() {
		now := time.Now().UTC()
		session = model.Session{
			ID:        uuid.New().String(),
			UserID:    identity.ID,
			Title:     title,
			CreatedAt: now,
			UpdatedAt: now,
		}
	} else {
		if err := s.offlineGuard(); err != nil {
			return "", err
		}
		var err error
		session, err = s.rows.InsertSession(ctx, title)
		if err != nil {
			wrapped := fmt.Errorf("%w: %v", model.ErrRemoteWriteFailed, err)
			s.setLastError(wrapped)
			return "", wrapped
		}
	}

	s.mu.Lock()
	s.sessions = applySessions(s.sessions, insertEvent(session))
	s.persistLocked()
	s.mu.Unlock()

	if err := s.SetActiveSession(ctx, session.ID); err != nil {
		logging.AppLogger.Warn("activating created session failed", zap.Error(err))
	}
	return session.ID, nil
}

// UpdateSession applies partial fields (currently the title) to one of the
// identity's sessions.
func (s *Store) UpdateSession(ctx context.Context, id, title string) error {
	if s.auth.CurrentIdentity() == nil {
		return model.ErrUnauthenticated
	}

	if s.localOnly() {
		s.mu.Lock()
		for i := range s.sessions {
			if s.sessions[i].ID == id {
				s.sessions[i].Title = title
				s.sessions[i].UpdatedAt = time.Now().UTC()
				break
			}
		}
		s.sessions = sortSessions(s.sessions)
		s.persistLocked()
		s.mu.Unlock()
		return nil
	}

	if err := s.offlineGuard(); err != nil {
		return err
	}
	session, err := s.rows.UpdateSession(ctx, id, map[string]any{"title": title})
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", model.ErrRemoteWriteFailed, err)
		s.setLastError(wrapped)
		return wrapped
	}
	s.mu.Lock()
	s.sessions = applySessions(s.sessions, updateEvent(session))
	s.persistLocked()
	s.mu.Unlock()
	return nil
}

// DeleteSession removes one of the identity's sessions. Deleting the active
// session falls back to the next most-recent session, or none.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if s.auth.CurrentIdentity() == nil {
		return model.ErrUnauthenticated
	}

	if !s.localOnly() {
		if err := s.offlineGuard(); err != nil {
			return err
		}
		if err := s.rows.DeleteSession(ctx, id); err != nil {
			wrapped := fmt.Errorf("%w: %v", model.ErrRemoteWriteFailed, err)
			s.setLastError(wrapped)
			return wrapped
		}
	}

	s.mu.Lock()
	s.sessions = applySessions(s.sessions, deleteEvent(id))
	delete(s.demoMessages, id)
	wasActive := s.activeID == id
	s.ensureActiveLocked()
	next := s.activeID
	s.persistLocked()
	s.mu.Unlock()

	if wasActive {
		if err := s.SetActiveSession(ctx, next); err != nil {
			logging.AppLogger.Warn("activating fallback session failed", zap.Error(err))
		}
	}
	return nil
}

// FetchMessages is the authoritative refresh point: it replaces the message
// buffer for sessionID when that session is active, and returns the ordered
// list either way.
func (s *Store) FetchMessages(ctx context.Context, sessionID string) ([]model.Message, error) {
	var messages []model.Message
	if s.localOnly() {
		s.mu.Lock()
		messages = append(messages, s.demoMessages[sessionID]...)
		s.mu.Unlock()
	} else {
		var err error
		messages, err = s.rows.SelectMessages(ctx, sessionID)
		if err != nil {
			return nil, err
		}
	}
	messages = sortMessages(messages)

	s.mu.Lock()
	if s.activeID == sessionID {
		s.messages = messages
	}
	s.mu.Unlock()
	return messages, nil
}

// AppendMessage persists one message against sessionID and refreshes from
// the authoritative source. Message dispatch is the intended caller.
func (s *Store) AppendMessage(ctx context.Context, sessionID string, role model.Role, content, provider string) (model.Message, error) {
	identity := s.auth.CurrentIdentity()
	if identity == nil {
		return model.Message{}, model.ErrUnauthenticated
	}

	if s.localOnly() {
		msg := model.Message{
			ID:            uuid.New().String(),
			ChatSessionID: sessionID,
			UserID:        identity.ID,
			Role:          role,
			Content:       content,
			Provider:      provider,
			CreatedAt:     time.Now().UTC(),
		}
		s.mu.Lock()
		s.demoMessages[sessionID] = append(s.demoMessages[sessionID], msg)
		for i := range s.sessions {
			if s.sessions[i].ID == sessionID {
				s.sessions[i].UpdatedAt = msg.CreatedAt
				break
			}
		}
		s.sessions = sortSessions(s.sessions)
		s.persistLocked()
		s.mu.Unlock()

		if _, err := s.FetchMessages(ctx, sessionID); err != nil {
			logging.AppLogger.Warn("demo message refresh failed", zap.Error(err))
		}
		return msg, nil
	}

	if err := s.offlineGuard(); err != nil {
		return model.Message{}, err
	}
	msg, err := s.rows.InsertMessage(ctx, model.Message{
		ChatSessionID: sessionID,
		Role:          role,
		Content:       content,
		Provider:      provider,
	})
	if err != nil {
		return model.Message{}, fmt.Errorf("%w: %v", model.ErrRemoteWriteFailed, err)
	}
	if _, err := s.FetchMessages(ctx, sessionID); err != nil {
		logging.AppLogger.Warn("post-write message refresh failed", zap.Error(err))
	}
	return msg, nil
}

// AttachVisualization associates a local-only render payload with a message
// id. It lives for the message's lifetime in memory and is never persisted.
func (s *Store) AttachVisualization(messageID string, v model.Visualization) {
	s.mu.Lock()
	s.viz[messageID] = v
	s.mu.Unlock()
}

// Visualization retrieves the payload attached to a message, if any.
func (s *Store) Visualization(messageID string) (model.Visualization, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.viz[messageID]
	return v, ok
}

func insertEvent(sess model.Session) model.ChangeEvent {
	return rowEvent(model.EventInsert, sess)
}

func updateEvent(sess model.Session) model.ChangeEvent {
	return rowEvent(model.EventUpdate, sess)
}

func deleteEvent(id string) model.ChangeEvent {
	return rowEvent(model.EventDelete, model.Session{ID: id})
}

func rowEvent(kind model.EventKind, sess model.Session) model.ChangeEvent {
	raw, _ := json.Marshal(sess)
	return model.ChangeEvent{Kind: kind, Collection: model.SessionsCollection, Row: raw}
}
