// Package auth is the single source of truth for "who is acting" and "can we
// reach the network". It resolves the initial identity exactly once, accepts
// the fixed demo credential pair when offline, and publishes identity
// transitions to interested components.
package auth

import (
	"context"
	"sync"

	"minima/minima/sync/cache"
	"minima/minima/sync/model"
	"minima/minima/sync/netwatch"
	"minima/minima/sync/remote"
	"minima/minima/utils/logging"

	"go.uber.org/zap"
)

type Status int

const (
	StatusUnknown Status = iota
	StatusAuthenticated
	StatusUnauthenticated
)

// DemoStore remembers a demo sign-in across restarts. *cache.Cache satisfies
// it; a nil store simply forgets the demo user on exit.
type DemoStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

type State struct {
	provider remote.Provider
	monitor  *netwatch.Monitor
	demo     DemoStore

	mu        sync.Mutex
	identity  *model.Identity
	status    Status
	loading   bool
	resolved  bool
	lastErr   error
	listeners []func(*model.Identity)
}

func New(provider remote.Provider, monitor *netwatch.Monitor, demo DemoStore) *State {
	return &State{
		provider: provider,
		monitor:  monitor,
		demo:     demo,
		status:   StatusUnknown,
		loading:  true,
	}
}

// Start performs the initial identity resolution. Offline startup restores a
// remembered demo sign-in; online startup asks the provider for the current
// session. Loading resolves exactly once per lifetime, whatever the outcome.
func (s *State) Start(ctx context.Context) {
	if s.monitor.Offline() {
		if s.demo != nil {
			if v, _ := s.demo.Get(cache.DemoUserKey); v == model.DemoEmail {
				logging.AppLogger.Info("offline startup, restoring demo identity")
				id := model.DemoIdentity()
				s.resolve(&id, nil)
				return
			}
		}
		s.resolve(nil, nil)
		return
	}

	id, err := s.provider.GetSession(ctx)
	if err != nil {
		if remote.IsNetworkError(err) {
			s.monitor.SetOffline(true)
		}
		logging.ErrorLogger.Error("initial session resolution failed", zap.Error(err))
		s.resolve(nil, err)
		return
	}
	s.resolve(id, nil)
}

// resolve finishes initial loading (first call only) and installs identity.
func (s *State) resolve(identity *model.Identity, err error) {
	s.mu.Lock()
	s.resolved = true
	s.loading = false
	s.lastErr = err
	s.setIdentityLocked(identity)
	listeners := s.snapshotListenersLocked()
	s.mu.Unlock()
	notify(listeners, identity)
}

func (s *State) setIdentityLocked(identity *model.Identity) {
	s.identity = identity
	if identity != nil {
		s.status = StatusAuthenticated
	} else {
		s.status = StatusUnauthenticated
	}
}

func (s *State) snapshotListenersLocked() []func(*model.Identity) {
	out := make([]func(*model.Identity), len(s.listeners))
	copy(out, s.listeners)
	return out
}

func notify(listeners []func(*model.Identity), identity *model.Identity) {
	for _, fn := range listeners {
		fn(identity)
	}
}

func (s *State) setIdentity(identity *model.Identity) {
	s.mu.Lock()
	s.setIdentityLocked(identity)
	listeners := s.snapshotListenersLocked()
	s.mu.Unlock()
	notify(listeners, identity)
}

// CurrentIdentity returns the acting identity, nil when unauthenticated.
func (s *State) CurrentIdentity() *model.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return nil
	}
	id := *s.identity
	return &id
}

// IsAuthenticated is true for both real and demo identities.
func (s *State) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity != nil
}

func (s *State) IsOffline() bool {
	return s.monitor.Offline()
}

// SetOffline forwards an observed connectivity change to the monitor.
// Callers that see a transport failure report it here rather than waiting
// for the next probe.
func (s *State) SetOffline(offline bool) {
	s.monitor.SetOffline(offline)
}

func (s *State) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Loading is true until the first resolution completes.
func (s *State) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *State) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// OnChange registers a listener for identity transitions (sign-in, sign-out,
// initial resolution). The listener receives the new identity or nil.
func (s *State) OnChange(fn func(*model.Identity)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *State) signInDemo() {
	id := model.DemoIdentity()
	if s.demo != nil {
		if err := s.demo.Set(cache.DemoUserKey, model.DemoEmail); err != nil {
			logging.AppLogger.Warn("could not remember demo sign-in", zap.Error(err))
		}
	}
	s.setIdentity(&id)
}

// SignIn authenticates with the remote provider. Offline, only the fixed demo
// credential pair is accepted and no network call is made.
func (s *State) SignIn(ctx context.Context, email, password string) error {
	if s.monitor.Offline() {
		if email == model.DemoEmail && password == model.DemoPassword {
			logging.AppLogger.Info("offline mode, signing in with demo account")
			s.signInDemo()
			return nil
		}
		return model.ErrOfflineUnavailable
	}

	id, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		if remote.IsNetworkError(err) {
			s.monitor.SetOffline(true)
			// The network died under us; the demo pair still works.
			if email == model.DemoEmail && password == model.DemoPassword {
				s.signInDemo()
				return nil
			}
			return model.ErrOfflineUnavailable
		}
		return err
	}
	if s.demo != nil {
		s.demo.Delete(cache.DemoUserKey)
	}
	s.setIdentity(id)
	return nil
}

// SignUp requires network; there is no demo sign-up.
func (s *State) SignUp(ctx context.Context, email, password string) error {
	if s.monitor.Offline() {
		return model.ErrOfflineUnavailable
	}
	id, err := s.provider.SignUp(ctx, email, password)
	if err != nil {
		if remote.IsNetworkError(err) {
			s.monitor.SetOffline(true)
			return model.ErrOfflineUnavailable
		}
		return err
	}
	s.setIdentity(id)
	return nil
}

// SignOut clears the local identity. For the demo identity (or while offline)
// no remote call is made; otherwise the provider call is best-effort and the
// local identity is cleared regardless.
func (s *State) SignOut(ctx context.Context) {
	s.mu.Lock()
	isDemo := s.identity != nil && s.identity.IsDemo()
	s.mu.Unlock()

	if s.demo != nil {
		s.demo.Delete(cache.DemoUserKey)
	}
	if !isDemo && !s.monitor.Offline() {
		if err := s.provider.SignOut(ctx); err != nil {
			logging.AppLogger.Warn("remote sign-out failed", zap.Error(err))
		}
	}
	s.setIdentity(nil)
}
