package realtime

import (
	"encoding/json"
	"sync"

	"minima/minima/utils/logging"

	"go.uber.org/zap"
)

type EventKind string

const (
	EventInsert EventKind = "INSERT"
	EventUpdate EventKind = "UPDATE"
	EventDelete EventKind = "DELETE"
)

// Event is one row change on a named collection. Row carries the full row
// as it was written (or, for deletes, the row as it was before removal).
type Event struct {
	Kind       EventKind       `json:"kind"`
	Collection string          `json:"collection"`
	Row        json.RawMessage `json:"row"`
}

// Filter is an equality predicate on a single row column.
type Filter struct {
	Column string `json:"column"`
	Value  string `json:"value"`
}

// Publisher is the write-side interface the DAOs use to announce changes.
type Publisher interface {
	Publish(collection string, kind EventKind, row any)
}

// Hub fans row-change events out to subscribed connections. Each connection
// holds one Client with an arbitrary set of collection filters; events are
// delivered to a client only when a registered filter matches the row.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]struct{})}
}

// Client event buffer size. A slow reader that falls this far behind gets
// events dropped and must do a full refetch after reconnecting.
const clientBuffer = 64

type Client struct {
	mu      sync.Mutex
	filters map[string]Filter // collection -> filter
	ch      chan Event
}

func (h *Hub) Register() *Client {
	c := &Client{
		filters: make(map[string]Filter),
		ch:      make(chan Event, clientBuffer),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *Hub) Drop(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		close(c.ch)
	}
}

// Events is the delivery channel; closed when the client is dropped.
func (c *Client) Events() <-chan Event {
	return c.ch
}

// Watch subscribes the client to one collection. A second call for the same
// collection replaces the previous filter.
func (c *Client) Watch(collection string, f Filter) {
	c.mu.Lock()
	c.filters[collection] = f
	c.mu.Unlock()
}

func (c *Client) Unwatch(collection string) {
	c.mu.Lock()
	delete(c.filters, collection)
	c.mu.Unlock()
}

func (c *Client) matches(collection string, row map[string]any) bool {
	c.mu.Lock()
	f, ok := c.filters[collection]
	c.mu.Unlock()
	if !ok {
		return false
	}
	if f.Column == "" {
		return true
	}
	v, ok := row[f.Column]
	if !ok {
		return false
	}
	s, ok := v.(string)
	return ok && s == f.Value
}

func (h *Hub) Publish(collection string, kind EventKind, row any) {
	raw, err := json.Marshal(row)
	if err != nil {
		logging.ErrorLogger.Error("realtime publish marshal failed",
			zap.String("collection", collection), zap.Error(err))
		return
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		logging.ErrorLogger.Error("realtime publish row is not an object",
			zap.String("collection", collection), zap.Error(err))
		return
	}
	ev := Event{Kind: kind, Collection: collection, Row: raw}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.matches(collection, fields) {
			continue
		}
		select {
		case c.ch <- ev:
		default:
			// Slow consumer; it will resync on reconnect.
			logging.AppLogger.Warn("realtime client buffer full, dropping event",
				zap.String("collection", collection))
		}
	}
}
