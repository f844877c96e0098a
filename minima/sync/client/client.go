// Package client assembles the sync layer into one object the view layer
// talks to: identity, connectivity, the session store, and message dispatch,
// wired against a single backend.
package client

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"minima/minima/sync/auth"
	"minima/minima/sync/cache"
	"minima/minima/sync/dispatch"
	"minima/minima/sync/feed"
	"minima/minima/sync/model"
	"minima/minima/sync/netwatch"
	"minima/minima/sync/remote"
	"minima/minima/sync/store"
	"minima/minima/utils/logging"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML strings like "30s" parse.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the client's wiring. BaseURL is the only required field.
type Config struct {
	// BaseURL of the backend, e.g. "http://localhost:8000".
	BaseURL string `yaml:"base_url"`

	// FeedURL of the change-feed websocket. Derived from BaseURL when empty.
	FeedURL string `yaml:"feed_url"`

	// HealthURL probed by the connectivity monitor. Derived when empty.
	HealthURL string `yaml:"health_url"`

	// CachePath of the local sqlite file for cold starts and the remembered
	// demo sign-in. Empty disables local persistence.
	CachePath string `yaml:"cache_path"`

	// ProbeInterval between connectivity checks. Defaults to 30s.
	ProbeInterval Duration `yaml:"probe_interval"`

	// SessionQueue serializes sends per session.
	SessionQueue bool `yaml:"session_queue"`
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c *Config) fillDefaults() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.FeedURL == "" {
		ws := strings.Replace(c.BaseURL, "http", "ws", 1)
		c.FeedURL = ws + "/realtime/ws"
	}
	if c.HealthURL == "" {
		c.HealthURL = c.BaseURL + "/api/health"
	}
	return nil
}

// Client is the composed sync layer.
type Client struct {
	cfg      Config
	remote   *remote.Client
	monitor  *netwatch.Monitor
	cache    *cache.Cache
	auth     *auth.State
	store    *store.Store
	dispatch *dispatch.Dispatcher
}

// feeder adapts *feed.Feed to the store's narrower interface.
type feeder struct {
	feed *feed.Feed
}

func (f feeder) Subscribe(ctx context.Context, collection string, filter feed.Filter, onEvent func(model.ChangeEvent)) (store.Subscription, error) {
	return f.feed.Subscribe(ctx, collection, filter, onEvent)
}

func New(cfg Config) (*Client, error) {
	if err := cfg.fillDefaults(); err != nil {
		return nil, err
	}

	rc := remote.NewClient(cfg.BaseURL)
	monitor := netwatch.New(cfg.HealthURL, time.Duration(cfg.ProbeInterval))

	var c *cache.Cache
	if cfg.CachePath != "" {
		var err error
		c, err = cache.Open(cfg.CachePath)
		if err != nil {
			logging.AppLogger.Warn("local cache unavailable", zap.Error(err))
			c = nil
		}
	}

	var demo auth.DemoStore
	if c != nil {
		demo = c
	}
	authState := auth.New(rc, monitor, demo)

	f := feed.New(cfg.FeedURL, rc.Token)
	st := store.New(authState, rc, feeder{feed: f}, c)

	var opts []dispatch.Option
	if cfg.SessionQueue {
		opts = append(opts, dispatch.WithSessionQueue())
	}
	disp := dispatch.New(st, rc, authState, opts...)

	return &Client{
		cfg:      cfg,
		remote:   rc,
		monitor:  monitor,
		cache:    c,
		auth:     authState,
		store:    st,
		dispatch: disp,
	}, nil
}

// Start brings the client up: connectivity probing, initial identity
// resolution, then store binding. Blocks only for the initial resolution.
func (c *Client) Start(ctx context.Context) {
	c.monitor.Start(ctx)
	c.store.Run(ctx)
	c.auth.Start(ctx)
}

// Close stops probing and releases the local cache. Feed subscriptions are
// torn down by cancelling the Start context.
func (c *Client) Close() error {
	c.monitor.Stop()
	if c.cache != nil {
		return c.cache.Close()
	}
	return nil
}

// Identity and connectivity.

func (c *Client) SignIn(ctx context.Context, email, password string) error {
	return c.auth.SignIn(ctx, email, password)
}

func (c *Client) SignUp(ctx context.Context, email, password string) error {
	return c.auth.SignUp(ctx, email, password)
}

func (c *Client) SignOut(ctx context.Context) {
	c.auth.SignOut(ctx)
}

func (c *Client) CurrentIdentity() *model.Identity { return c.auth.CurrentIdentity() }
func (c *Client) IsAuthenticated() bool            { return c.auth.IsAuthenticated() }
func (c *Client) IsOffline() bool                  { return c.auth.IsOffline() }
func (c *Client) Loading() bool                    { return c.auth.Loading() }

// OnAuthChange registers for identity transitions, including sign-out (nil).
func (c *Client) OnAuthChange(fn func(*model.Identity)) {
	c.auth.OnChange(fn)
}

// Sessions and messages.

func (c *Client) ListSessions() []model.Session { return c.store.Sessions() }
func (c *Client) ActiveSessionID() string       { return c.store.ActiveSessionID() }
func (c *Client) ActiveSession() *model.Session { return c.store.ActiveSession() }
func (c *Client) Messages() []model.Message     { return c.store.Messages() }
func (c *Client) LastError() error              { return c.store.LastError() }

func (c *Client) SetActiveSession(ctx context.Context, id string) error {
	return c.store.SetActiveSession(ctx, id)
}

func (c *Client) CreateSession(ctx context.Context, title string) (string, error) {
	return c.store.CreateSession(ctx, title)
}

func (c *Client) RenameSession(ctx context.Context, id, title string) error {
	return c.store.UpdateSession(ctx, id, title)
}

func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.store.DeleteSession(ctx, id)
}

func (c *Client) Visualization(messageID string) (model.Visualization, bool) {
	return c.store.Visualization(messageID)
}

// Send runs a full conversation turn against the active session, creating
// one when needed. The returned messages are the persisted user and
// assistant rows.
func (c *Client) Send(ctx context.Context, content string, opts dispatch.GenerateOptions) (model.Message, model.Message, error) {
	return c.dispatch.SendTurn(ctx, content, opts)
}

// SendUserMessage persists content without generating a reply.
func (c *Client) SendUserMessage(ctx context.Context, content string, viz *model.Visualization) (model.Message, error) {
	return c.dispatch.SendUserMessage(ctx, content, viz)
}

// SendAssistantMessage generates and persists a reply in the given session.
func (c *Client) SendAssistantMessage(ctx context.Context, sessionID, prompt string, opts dispatch.GenerateOptions) (model.Message, error) {
	return c.dispatch.SendAssistantMessage(ctx, sessionID, prompt, opts)
}
