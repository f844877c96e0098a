// Package feed is the client side of the change feed: a live sequence of
// insert/update/delete events for one filtered remote collection, delivered
// over a websocket that resumes silently across disconnects.
package feed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"minima/minima/sync/model"
	"minima/minima/utils/logging"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// Filter is an equality predicate on a row column, applied server-side.
type Filter struct {
	Column string `json:"column"`
	Value  string `json:"value"`
}

// Conn abstracts the websocket so tests can inject a scripted transport.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

type Dialer func(ctx context.Context, url string) (Conn, error)

type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := w.c.Read(ctx)
	return data, err
}

func (w *wsConn) Write(ctx context.Context, data []byte) error {
	return w.c.Write(ctx, websocket.MessageText, data)
}

func (w *wsConn) Close() error {
	return w.c.Close(websocket.StatusNormalClosure, "")
}

func defaultDialer(ctx context.Context, url string) (Conn, error) {
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &wsConn{c: c}, nil
}

// Reconnect policy: exponential backoff, giving up after maxAttempts
// consecutive failures (the subscription then delivers a terminal CLOSED
// event and stops).
const (
	baseBackoff = time.Second
	maxBackoff  = 30 * time.Second
	maxAttempts = 5
)

type Feed struct {
	url    string
	token  func() string
	dialer Dialer

	baseBackoff time.Duration
	maxBackoff  time.Duration
	maxAttempts int
}

func New(url string, token func() string) *Feed {
	return NewWithDialer(url, token, defaultDialer)
}

// NewWithDialer is the test constructor.
func NewWithDialer(url string, token func() string, d Dialer) *Feed {
	return &Feed{
		url:         url,
		token:       token,
		dialer:      d,
		baseBackoff: baseBackoff,
		maxBackoff:  maxBackoff,
		maxAttempts: maxAttempts,
	}
}

type subscribeFrame struct {
	Action     string `json:"action"`
	Collection string `json:"collection"`
	Filter     Filter `json:"filter"`
}

// Subscription is one live collection watch. Events are delivered on a single
// goroutine, so updates to the same row never arrive out of order.
type Subscription struct {
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// Unsubscribe stops delivery and releases the connection. Safe to call any
// number of times.
func (s *Subscription) Unsubscribe() {
	s.stopOnce.Do(s.cancel)
}

// Done closes when the delivery goroutine has fully stopped.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Subscribe opens a filtered watch on collection. onEvent receives row events
// plus the synthetic RESYNC (after a silent reconnect) and CLOSED (terminal)
// kinds; it is never called concurrently with itself.
func (f *Feed) Subscribe(ctx context.Context, collection string, filter Filter, onEvent func(model.ChangeEvent)) (*Subscription, error) {
	runCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{cancel: cancel, done: make(chan struct{})}

	conn, err := f.connect(runCtx, collection, filter)
	if err != nil {
		cancel()
		close(sub.done)
		return nil, err
	}

	go f.run(runCtx, conn, collection, filter, onEvent, sub)
	return sub, nil
}

func (f *Feed) connect(ctx context.Context, collection string, filter Filter) (Conn, error) {
	conn, err := f.dialer(ctx, f.url)
	if err != nil {
		return nil, err
	}
	hello, _ := json.Marshal(map[string]string{"token": f.token()})
	if err := conn.Write(ctx, hello); err != nil {
		conn.Close()
		return nil, err
	}
	// Handshake ack; an {"error": ...} reply means the token was rejected.
	ack, err := conn.Read(ctx)
	if err != nil {
		conn.Close()
		return nil, err
	}
	var status struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(ack, &status); err != nil || status.Error != "" {
		conn.Close()
		return nil, model.ErrUnauthenticated
	}
	frame, _ := json.Marshal(subscribeFrame{Action: "subscribe", Collection: collection, Filter: filter})
	if err := conn.Write(ctx, frame); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func (f *Feed) run(ctx context.Context, conn Conn, collection string, filter Filter, onEvent func(model.ChangeEvent), sub *Subscription) {
	defer close(sub.done)
	defer func() {
		if conn != nil {
			conn.Close()
		}
	}()

	attempts := 0
	for {
		if conn == nil {
			// Reconnect with backoff; resume silently when it works.
			backoff := f.baseBackoff << attempts
			if backoff > f.maxBackoff {
				backoff = f.maxBackoff
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			var err error
			conn, err = f.connect(ctx, collection, filter)
			if err != nil {
				attempts++
				if attempts >= f.maxAttempts {
					logging.ErrorLogger.Error("change feed closed",
						zap.String("collection", collection), zap.Error(err))
					onEvent(model.ChangeEvent{Kind: model.EventClosed, Collection: collection})
					return
				}
				continue
			}
			attempts = 0
			onEvent(model.ChangeEvent{Kind: model.EventResync, Collection: collection})
		}

		data, err := conn.Read(ctx)
		if err != nil {
			conn.Close()
			conn = nil
			if ctx.Err() != nil {
				return
			}
			continue
		}

		var ev model.ChangeEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			logging.AppLogger.Warn("dropping malformed feed frame",
				zap.String("collection", collection), zap.Error(err))
			continue
		}
		switch ev.Kind {
		case model.EventInsert, model.EventUpdate, model.EventDelete:
		default:
			continue
		}
		// Rows for other collections never reach the consumer.
		if ev.Collection != collection {
			continue
		}
		onEvent(ev)
	}
}
