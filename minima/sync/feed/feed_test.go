package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"minima/minima/sync/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptConn speaks the server side of the handshake: it acks the token
// frame and then serves whatever the test queues on reads.
type scriptConn struct {
	reads     chan []byte
	rejectAck bool

	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func newScriptConn() *scriptConn {
	return &scriptConn{reads: make(chan []byte, 16)}
}

func (c *scriptConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case b, ok := <-c.reads:
		if !ok {
			return nil, io.EOF
		}
		return b, nil
	}
}

func (c *scriptConn) Write(ctx context.Context, data []byte) error {
	c.mu.Lock()
	c.frames = append(c.frames, data)
	c.mu.Unlock()

	var frame map[string]any
	if err := json.Unmarshal(data, &frame); err != nil {
		return err
	}
	if _, ok := frame["token"]; ok {
		if c.rejectAck {
			c.reads <- []byte(`{"error":"bad token"}`)
		} else {
			c.reads <- []byte(`{"status":"subscribed"}`)
		}
	}
	return nil
}

func (c *scriptConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *scriptConn) push(t *testing.T, ev model.ChangeEvent) {
	t.Helper()
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	c.reads <- data
}

func sessionEvent(kind model.EventKind, id string) model.ChangeEvent {
	row, _ := json.Marshal(map[string]string{"id": id, "user_id": "u1"})
	return model.ChangeEvent{Kind: kind, Collection: model.SessionsCollection, Row: row}
}

type collector struct {
	mu     sync.Mutex
	events []model.ChangeEvent
	notify chan struct{}
}

func newCollector() *collector {
	return &collector{notify: make(chan struct{}, 64)}
}

func (c *collector) onEvent(ev model.ChangeEvent) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
	c.notify <- struct{}{}
}

func (c *collector) waitFor(t *testing.T, n int) []model.ChangeEvent {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		c.mu.Lock()
		if len(c.events) >= n {
			out := make([]model.ChangeEvent, len(c.events))
			copy(out, c.events)
			c.mu.Unlock()
			return out
		}
		c.mu.Unlock()
		select {
		case <-c.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %d events", n)
		}
	}
}

func fastFeed(dialer Dialer) *Feed {
	f := NewWithDialer("ws://test/realtime/ws", func() string { return "tok" }, dialer)
	f.baseBackoff = time.Millisecond
	f.maxBackoff = 5 * time.Millisecond
	return f
}

func TestSubscribeDeliversEventsInOrder(t *testing.T) {
	conn := newScriptConn()
	f := fastFeed(func(ctx context.Context, url string) (Conn, error) { return conn, nil })
	col := newCollector()

	sub, err := f.Subscribe(context.Background(), model.SessionsCollection, Filter{Column: "user_id", Value: "u1"}, col.onEvent)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	conn.push(t, sessionEvent(model.EventInsert, "s1"))
	conn.push(t, sessionEvent(model.EventUpdate, "s1"))
	conn.push(t, sessionEvent(model.EventDelete, "s1"))

	events := col.waitFor(t, 3)
	assert.Equal(t, model.EventInsert, events[0].Kind)
	assert.Equal(t, model.EventUpdate, events[1].Kind)
	assert.Equal(t, model.EventDelete, events[2].Kind)
}

func TestSubscribeSendsHandshakeFrames(t *testing.T) {
	conn := newScriptConn()
	f := fastFeed(func(ctx context.Context, url string) (Conn, error) { return conn, nil })

	sub, err := f.Subscribe(context.Background(), model.MessagesCollection, Filter{Column: "chat_session_id", Value: "s1"}, func(model.ChangeEvent) {})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	conn.mu.Lock()
	defer conn.mu.Unlock()
	require.Len(t, conn.frames, 2)

	var hello map[string]string
	require.NoError(t, json.Unmarshal(conn.frames[0], &hello))
	assert.Equal(t, "tok", hello["token"])

	var subFrame subscribeFrame
	require.NoError(t, json.Unmarshal(conn.frames[1], &subFrame))
	assert.Equal(t, "subscribe", subFrame.Action)
	assert.Equal(t, model.MessagesCollection, subFrame.Collection)
	assert.Equal(t, "chat_session_id", subFrame.Filter.Column)
}

func TestSubscribeRejectedTokenFailsFast(t *testing.T) {
	conn := newScriptConn()
	conn.rejectAck = true
	f := fastFeed(func(ctx context.Context, url string) (Conn, error) { return conn, nil })

	_, err := f.Subscribe(context.Background(), model.SessionsCollection, Filter{}, func(model.ChangeEvent) {})
	assert.ErrorIs(t, err, model.ErrUnauthenticated)
	assert.True(t, conn.closed)
}

func TestMalformedAndForeignFramesAreDropped(t *testing.T) {
	conn := newScriptConn()
	f := fastFeed(func(ctx context.Context, url string) (Conn, error) { return conn, nil })
	col := newCollector()

	sub, err := f.Subscribe(context.Background(), model.SessionsCollection, Filter{}, col.onEvent)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	conn.reads <- []byte(`{not json`)
	conn.reads <- []byte(`{"kind":"NONSENSE","collection":"chat_sessions"}`)
	foreign := sessionEvent(model.EventInsert, "x1")
	foreign.Collection = model.MessagesCollection
	conn.push(t, foreign)
	conn.push(t, sessionEvent(model.EventInsert, "s1"))

	events := col.waitFor(t, 1)
	require.Len(t, events, 1)
	row, err := events[0].DecodeSession()
	require.NoError(t, err)
	assert.Equal(t, "s1", row.ID)
}

func TestReconnectEmitsResync(t *testing.T) {
	conn1 := newScriptConn()
	conn2 := newScriptConn()
	var mu sync.Mutex
	dials := 0
	dialer := func(ctx context.Context, url string) (Conn, error) {
		mu.Lock()
		defer mu.Unlock()
		dials++
		if dials == 1 {
			return conn1, nil
		}
		return conn2, nil
	}

	f := fastFeed(dialer)
	col := newCollector()
	sub, err := f.Subscribe(context.Background(), model.SessionsCollection, Filter{}, col.onEvent)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	conn1.push(t, sessionEvent(model.EventInsert, "s1"))
	col.waitFor(t, 1)

	// Server drops the connection; the feed resumes and flags staleness.
	close(conn1.reads)
	conn2.push(t, sessionEvent(model.EventInsert, "s2"))

	events := col.waitFor(t, 3)
	assert.Equal(t, model.EventInsert, events[0].Kind)
	assert.Equal(t, model.EventResync, events[1].Kind)
	assert.Equal(t, model.EventInsert, events[2].Kind)
}

func TestGivesUpWithClosedEvent(t *testing.T) {
	conn1 := newScriptConn()
	var mu sync.Mutex
	dials := 0
	dialer := func(ctx context.Context, url string) (Conn, error) {
		mu.Lock()
		defer mu.Unlock()
		dials++
		if dials == 1 {
			return conn1, nil
		}
		return nil, fmt.Errorf("connection refused")
	}

	f := fastFeed(dialer)
	col := newCollector()
	sub, err := f.Subscribe(context.Background(), model.SessionsCollection, Filter{}, col.onEvent)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	close(conn1.reads)

	events := col.waitFor(t, 1)
	assert.Equal(t, model.EventClosed, events[0].Kind)

	select {
	case <-sub.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("subscription did not stop after giving up")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	conn := newScriptConn()
	f := fastFeed(func(ctx context.Context, url string) (Conn, error) { return conn, nil })
	col := newCollector()

	sub, err := f.Subscribe(context.Background(), model.SessionsCollection, Filter{}, col.onEvent)
	require.NoError(t, err)

	sub.Unsubscribe()
	sub.Unsubscribe() // idempotent

	select {
	case <-sub.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("subscription did not stop")
	}
}
