// Package dispatch turns "the user pressed send" into the persisted
// conversation turn: the user row, the generation call, and the assistant
// row. A failed generation still produces an assistant row so a session
// never ends on an unanswered user message.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"minima/minima/sync/auth"
	"minima/minima/sync/model"
	"minima/minima/sync/remote"
	"minima/minima/sync/store"
	"minima/minima/utils/logging"

	"go.uber.org/zap"
)

const (
	defaultTitle  = "New Chat"
	titleMaxWords = 5
	titleMaxChars = 30
)

// GenerateOptions tune one assistant turn. Zero values defer to the
// generation service's defaults.
type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
	StudyMode   bool
	ActiveTools []string

	// Visualization, when set, is attached to the assistant message after it
	// persists. Lost on generation failure, like the reply itself.
	Visualization *model.Visualization
}

type Option func(*Dispatcher)

// WithSessionQueue serializes sends per session: a second SendTurn against
// the same session waits for the in-flight one. Off by default; overlapping
// sends are permitted and land in arrival order either way.
func WithSessionQueue() Option {
	return func(d *Dispatcher) { d.queued = true }
}

type Dispatcher struct {
	store *store.Store
	gen   remote.Generator
	auth  *auth.State

	queued bool
	mu     sync.Mutex
	locks  map[string]*sync.Mutex
}

func New(st *store.Store, gen remote.Generator, a *auth.State, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store: st,
		gen:   gen,
		auth:  a,
		locks: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) sessionLock(id string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.locks[id]
	if !ok {
		l = &sync.Mutex{}
		d.locks[id] = l
	}
	return l
}

// SendUserMessage persists content as a user message in the active session,
// creating a session titled from the content when none is active. The
// returned message carries the session it landed in.
func (d *Dispatcher) SendUserMessage(ctx context.Context, content string, viz *model.Visualization) (model.Message, error) {
	if d.auth.CurrentIdentity() == nil {
		return model.Message{}, model.ErrUnauthenticated
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return model.Message{}, fmt.Errorf("empty message content")
	}

	sessionID := d.store.ActiveSessionID()
	firstInSession := false
	if sessionID == "" {
		id, err := d.store.CreateSession(ctx, deriveTitle(content))
		if err != nil {
			return model.Message{}, err
		}
		sessionID = id
	} else {
		firstInSession = len(d.store.Messages()) == 0
	}

	msg, err := d.store.AppendMessage(ctx, sessionID, model.RoleUser, content, "")
	if err != nil {
		return model.Message{}, err
	}
	if viz != nil {
		d.store.AttachVisualization(msg.ID, *viz)
	}

	// First message into a still-untitled session names it.
	if firstInSession {
		if sess := d.store.ActiveSession(); sess != nil && (sess.Title == "" || sess.Title == defaultTitle) {
			if err := d.store.UpdateSession(ctx, sessionID, deriveTitle(content)); err != nil {
				logging.AppLogger.Warn("session title update failed", zap.Error(err))
			}
		}
	}
	return msg, nil
}

// SendAssistantMessage generates a reply to prompt and persists it against
// sessionID. Generation failure is absorbed: the persisted row carries the
// fixed apology text with provider "error", and no error is returned. Only a
// failure to persist surfaces to the caller.
func (d *Dispatcher) SendAssistantMessage(ctx context.Context, sessionID, prompt string, opts GenerateOptions) (model.Message, error) {
	if d.auth.CurrentIdentity() == nil {
		return model.Message{}, model.ErrUnauthenticated
	}
	if sessionID == "" {
		return model.Message{}, fmt.Errorf("no session for assistant message")
	}

	content, provider := d.generate(ctx, prompt, opts)

	msg, err := d.store.AppendMessage(ctx, sessionID, model.RoleAssistant, content, provider)
	if err != nil {
		return model.Message{}, fmt.Errorf("assistant reply not persisted: %w", err)
	}
	if provider != model.ErrorProvider && opts.Visualization != nil {
		d.store.AttachVisualization(msg.ID, *opts.Visualization)
	}
	return msg, nil
}

// SendTurn is the full exchange: the user message, then the assistant reply
// in the same session. It never returns with the user message unanswered
// unless persisting the reply itself failed.
func (d *Dispatcher) SendTurn(ctx context.Context, content string, opts GenerateOptions) (model.Message, model.Message, error) {
	userMsg, err := d.SendUserMessage(ctx, content, nil)
	if err != nil {
		return model.Message{}, model.Message{}, err
	}
	if d.queued {
		l := d.sessionLock(userMsg.ChatSessionID)
		l.Lock()
		defer l.Unlock()
	}
	assistantMsg, err := d.SendAssistantMessage(ctx, userMsg.ChatSessionID, content, opts)
	if err != nil {
		return userMsg, model.Message{}, err
	}
	return userMsg, assistantMsg, nil
}

// generate runs the model call and maps any failure, including being
// offline, to the sentinel reply. A demo identity still generates when the
// endpoint is reachable; only persistence stays local.
func (d *Dispatcher) generate(ctx context.Context, prompt string, opts GenerateOptions) (content, provider string) {
	if d.auth.IsOffline() {
		logging.AppLogger.Info("generation unavailable without network, storing error reply")
		return model.GenerationErrorText, model.ErrorProvider
	}

	result, err := d.gen.Generate(ctx, remote.GenerateRequest{
		Prompt:      prompt,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		StudyMode:   opts.StudyMode,
		ActiveTools: opts.ActiveTools,
	})
	if err != nil {
		logging.ErrorLogger.Error("generation failed", zap.Error(err))
		if remote.IsNetworkError(err) {
			d.auth.SetOffline(true)
		}
		return model.GenerationErrorText, model.ErrorProvider
	}
	return result.Response, result.Provider
}

// deriveTitle builds a session title from the first message: up to five
// words, clipped at thirty characters.
func deriveTitle(content string) string {
	words := strings.Fields(content)
	if len(words) > titleMaxWords {
		words = words[:titleMaxWords]
	}
	title := strings.Join(words, " ")
	if r := []rune(title); len(r) > titleMaxChars {
		title = string(r[:titleMaxChars]) + "..."
	}
	return title
}
