package auth

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"minima/minima/sync/cache"
	"minima/minima/sync/model"
	"minima/minima/sync/netwatch"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedProvider struct {
	session    *model.Identity
	sessionErr error
	signInID   *model.Identity
	signInErr  error
	signOuts   int
}

func (p *scriptedProvider) GetSession(ctx context.Context) (*model.Identity, error) {
	return p.session, p.sessionErr
}

func (p *scriptedProvider) SignUp(ctx context.Context, email, password string) (*model.Identity, error) {
	return p.signInID, p.signInErr
}

func (p *scriptedProvider) SignInWithPassword(ctx context.Context, email, password string) (*model.Identity, error) {
	return p.signInID, p.signInErr
}

func (p *scriptedProvider) SignOut(ctx context.Context) error {
	p.signOuts++
	return nil
}

type memDemoStore struct {
	mu sync.Mutex
	kv map[string]string
}

func newMemDemoStore() *memDemoStore { return &memDemoStore{kv: make(map[string]string)} }

func (s *memDemoStore) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv[key], nil
}

func (s *memDemoStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv[key] = value
	return nil
}

func (s *memDemoStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.kv, key)
	return nil
}

func offlineMonitor() *netwatch.Monitor {
	m := netwatch.NewWithProbe(func(ctx context.Context) error { return fmt.Errorf("down") }, time.Hour)
	m.SetOffline(true)
	return m
}

func onlineMonitor() *netwatch.Monitor {
	m := netwatch.NewWithProbe(func(ctx context.Context) error { return nil }, time.Hour)
	m.SetOffline(false)
	return m
}

func TestStartResolvesExistingSession(t *testing.T) {
	provider := &scriptedProvider{session: &model.Identity{ID: "u1", Email: "u1@example.com"}}
	s := New(provider, onlineMonitor(), nil)
	assert.True(t, s.Loading())

	s.Start(context.Background())
	assert.False(t, s.Loading())
	assert.Equal(t, StatusAuthenticated, s.Status())
	require.NotNil(t, s.CurrentIdentity())
	assert.Equal(t, "u1", s.CurrentIdentity().ID)
}

func TestStartWithoutSessionResolvesUnauthenticated(t *testing.T) {
	s := New(&scriptedProvider{}, onlineMonitor(), nil)
	s.Start(context.Background())
	assert.False(t, s.Loading())
	assert.Equal(t, StatusUnauthenticated, s.Status())
	assert.Nil(t, s.CurrentIdentity())
}

func TestOfflineDemoSignIn(t *testing.T) {
	demo := newMemDemoStore()
	s := New(&scriptedProvider{}, offlineMonitor(), demo)
	s.Start(context.Background())

	err := s.SignIn(context.Background(), model.DemoEmail, model.DemoPassword)
	require.NoError(t, err)

	id := s.CurrentIdentity()
	require.NotNil(t, id)
	assert.True(t, id.IsDemo())
	assert.Equal(t, model.DemoUserID, id.ID)

	remembered, _ := demo.Get(cache.DemoUserKey)
	assert.Equal(t, model.DemoEmail, remembered)
}

func TestOfflineRejectsNonDemoCredentials(t *testing.T) {
	s := New(&scriptedProvider{}, offlineMonitor(), nil)
	s.Start(context.Background())

	err := s.SignIn(context.Background(), "real@example.com", "hunter2")
	assert.ErrorIs(t, err, model.ErrOfflineUnavailable)
	assert.Nil(t, s.CurrentIdentity())
}

func TestOfflineStartRestoresRememberedDemo(t *testing.T) {
	demo := newMemDemoStore()
	require.NoError(t, demo.Set(cache.DemoUserKey, model.DemoEmail))

	s := New(&scriptedProvider{}, offlineMonitor(), demo)
	s.Start(context.Background())

	id := s.CurrentIdentity()
	require.NotNil(t, id)
	assert.True(t, id.IsDemo())
}

func TestNetworkFailureDuringSignInFallsBackToDemo(t *testing.T) {
	provider := &scriptedProvider{signInErr: &url.Error{Op: "Post", URL: "http://x", Err: fmt.Errorf("refused")}}
	monitor := onlineMonitor()
	s := New(provider, monitor, newMemDemoStore())
	s.Start(context.Background())

	err := s.SignIn(context.Background(), model.DemoEmail, model.DemoPassword)
	require.NoError(t, err)
	assert.True(t, monitor.Offline())
	require.NotNil(t, s.CurrentIdentity())
	assert.True(t, s.CurrentIdentity().IsDemo())
}

func TestNetworkFailureWithRealCredentials(t *testing.T) {
	provider := &scriptedProvider{signInErr: &url.Error{Op: "Post", URL: "http://x", Err: fmt.Errorf("refused")}}
	s := New(provider, onlineMonitor(), nil)
	s.Start(context.Background())

	err := s.SignIn(context.Background(), "real@example.com", "hunter2")
	assert.ErrorIs(t, err, model.ErrOfflineUnavailable)
}

func TestSignInFailurePropagatesProviderError(t *testing.T) {
	provider := &scriptedProvider{signInErr: fmt.Errorf("invalid credentials")}
	s := New(provider, onlineMonitor(), nil)
	s.Start(context.Background())

	err := s.SignIn(context.Background(), "real@example.com", "wrong")
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrOfflineUnavailable)
}

func TestSignUpOfflineUnavailable(t *testing.T) {
	s := New(&scriptedProvider{}, offlineMonitor(), nil)
	s.Start(context.Background())

	err := s.SignUp(context.Background(), model.DemoEmail, model.DemoPassword)
	assert.ErrorIs(t, err, model.ErrOfflineUnavailable)
}

func TestSignOutClearsDemoWithoutRemoteCall(t *testing.T) {
	demo := newMemDemoStore()
	provider := &scriptedProvider{}
	s := New(provider, offlineMonitor(), demo)
	s.Start(context.Background())
	require.NoError(t, s.SignIn(context.Background(), model.DemoEmail, model.DemoPassword))

	s.SignOut(context.Background())
	assert.Nil(t, s.CurrentIdentity())
	assert.Equal(t, 0, provider.signOuts)
	remembered, _ := demo.Get(cache.DemoUserKey)
	assert.Equal(t, "", remembered)
}

func TestSignOutCallsProviderWhenOnline(t *testing.T) {
	provider := &scriptedProvider{session: &model.Identity{ID: "u1"}}
	s := New(provider, onlineMonitor(), nil)
	s.Start(context.Background())
	require.NotNil(t, s.CurrentIdentity())

	s.SignOut(context.Background())
	assert.Nil(t, s.CurrentIdentity())
	assert.Equal(t, 1, provider.signOuts)
}

func TestOnChangeNotifiesTransitions(t *testing.T) {
	provider := &scriptedProvider{signInID: &model.Identity{ID: "u1"}}
	s := New(provider, onlineMonitor(), nil)

	var mu sync.Mutex
	var seen []string
	s.OnChange(func(id *model.Identity) {
		mu.Lock()
		defer mu.Unlock()
		if id == nil {
			seen = append(seen, "nil")
		} else {
			seen = append(seen, id.ID)
		}
	})

	s.Start(context.Background())
	require.NoError(t, s.SignIn(context.Background(), "u1@example.com", "pw"))
	s.SignOut(context.Background())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"nil", "u1", "nil"}, seen)
}

func TestRealSignInForgetsDemoMarker(t *testing.T) {
	demo := newMemDemoStore()
	require.NoError(t, demo.Set(cache.DemoUserKey, model.DemoEmail))
	provider := &scriptedProvider{signInID: &model.Identity{ID: "u1"}}
	s := New(provider, onlineMonitor(), demo)
	s.Start(context.Background())

	require.NoError(t, s.SignIn(context.Background(), "u1@example.com", "pw"))
	remembered, _ := demo.Get(cache.DemoUserKey)
	assert.Equal(t, "", remembered)
}
